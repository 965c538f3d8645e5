package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bizzshort/internal/domain"

	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	if err := mapError(fmt.Errorf("wrapped: %w", gorm.ErrRecordNotFound)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mapError(gorm.ErrDuplicatedKey); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	other := errors.New("boom")
	if err := mapError(other); err != other {
		t.Fatalf("expected passthrough, got %v", err)
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	if got := likePattern(`50%_off\`); got != `%50\%\_off\\%` {
		t.Fatalf("unexpected pattern %q", got)
	}
}

func TestRepositoriesWithoutDB(t *testing.T) {
	ctx := context.Background()
	if _, err := NewDocumentRepository(nil).Get(ctx, domain.CollectionArticles, "x"); !errors.Is(err, errDBUnavailable) {
		t.Fatalf("expected errDBUnavailable, got %v", err)
	}
	if err := NewProfileSettingsRepository(nil).Set(ctx, "k", []byte("v")); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := NewAuditEventRepository(nil).Last(ctx); !errors.Is(err, errDBUnavailable) {
		t.Fatalf("expected errDBUnavailable, got %v", err)
	}
}

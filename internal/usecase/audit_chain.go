package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bizzshort/internal/domain"

	"github.com/google/uuid"
)

type AuditRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) error
	// Last returns domain.ErrNotFound for an empty log.
	Last(ctx context.Context) (domain.AuditEvent, error)
	List(ctx context.Context, collection domain.Collection, limit int) ([]domain.AuditEvent, error)
}

// AuditTrail appends content writes to a tamper-evident log. Actor
// credentials are stored only as hashes.
type AuditTrail struct {
	mu   sync.Mutex
	repo AuditRepository
	now  func() time.Time
}

func NewAuditTrail(repo AuditRepository, now func() time.Time) *AuditTrail {
	if now == nil {
		now = time.Now
	}
	return &AuditTrail{repo: repo, now: now}
}

func (a *AuditTrail) Record(ctx context.Context, action domain.AuditAction, doc domain.Document, actor string) (domain.AuditEvent, error) {
	if a == nil || a.repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	payload, err := json.Marshal(doc.Fields)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("encode audit payload: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	prevHash := zeroAuditHash()
	seq := int64(1)
	last, err := a.repo.Last(ctx)
	switch {
	case err == nil:
		prevHash = last.EventHash
		seq = last.Seq + 1
	case !errors.Is(err, domain.ErrNotFound):
		return domain.AuditEvent{}, err
	}

	event := domain.AuditEvent{
		ID:            uuid.NewString(),
		Seq:           seq,
		Action:        action,
		Collection:    doc.Collection,
		DocumentID:    doc.ID,
		ActorHash:     sha256Hex([]byte(actor)),
		PayloadHash:   sha256Hex(payload),
		PrevEventHash: prevHash,
		CreatedAt:     a.now().UTC().Truncate(time.Microsecond),
	}
	event.EventHash, err = computeChainHash(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	if err := a.repo.Append(ctx, event); err != nil {
		return domain.AuditEvent{}, err
	}
	return event, nil
}

// Events returns events in sequence order. An empty collection lists every
// collection.
func (a *AuditTrail) Events(ctx context.Context, collection domain.Collection, limit int) ([]domain.AuditEvent, error) {
	if a == nil || a.repo == nil {
		return nil, errors.New("audit repository required")
	}
	if limit <= 0 || limit > domain.MaxPageSize {
		limit = domain.MaxPageSize
	}
	return a.repo.List(ctx, collection, limit)
}

// VerifyAuditChain walks events in sequence order and checks every link.
func VerifyAuditChain(events []domain.AuditEvent) error {
	expectedSeq := int64(1)
	prevHash := zeroAuditHash()
	for _, event := range events {
		if event.Seq != expectedSeq {
			return fmt.Errorf("audit chain seq mismatch: expected %d got %d", expectedSeq, event.Seq)
		}
		if event.PrevEventHash != prevHash {
			return fmt.Errorf("audit chain prev hash mismatch at seq %d", event.Seq)
		}
		if event.CreatedAt.IsZero() {
			return fmt.Errorf("audit chain missing created_at at seq %d", event.Seq)
		}
		expectedHash, err := computeChainHash(event)
		if err != nil {
			return fmt.Errorf("audit chain hash compute failed at seq %d: %w", event.Seq, err)
		}
		if expectedHash != event.EventHash {
			return fmt.Errorf("audit chain hash mismatch at seq %d", event.Seq)
		}
		prevHash = event.EventHash
		expectedSeq++
	}
	return nil
}

type chainPayload struct {
	Version       string `json:"v"`
	Seq           int64  `json:"seq"`
	Action        string `json:"action"`
	Collection    string `json:"collection"`
	DocumentID    string `json:"document_id"`
	ActorHash     string `json:"actor_hash"`
	PayloadHash   string `json:"payload_hash"`
	PrevEventHash string `json:"prev_event_hash"`
	CreatedAt     string `json:"created_at"`
}

func computeChainHash(event domain.AuditEvent) (string, error) {
	if event.Action == "" || event.Collection == "" {
		return "", errors.New("audit event missing action or collection")
	}
	if event.PayloadHash == "" || event.PrevEventHash == "" {
		return "", errors.New("audit event missing payload_hash or prev_event_hash")
	}
	canonical, err := json.Marshal(chainPayload{
		Version:       domain.AuditChainVersion,
		Seq:           event.Seq,
		Action:        string(event.Action),
		Collection:    string(event.Collection),
		DocumentID:    event.DocumentID,
		ActorHash:     event.ActorHash,
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	return sha256Hex(canonical), nil
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

func zeroAuditHash() string {
	return "0000000000000000000000000000000000000000000000000000000000000000"
}

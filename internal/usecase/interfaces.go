package usecase

import (
	"context"
	"time"

	"bizzshort/internal/domain"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, collection domain.Collection, id string) (domain.Document, error)
	Replace(ctx context.Context, doc domain.Document) error
	Delete(ctx context.Context, collection domain.Collection, id string) error
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)
}

// Page is the rendered page an ad session manipulates. It only exposes
// element lookup, inline style and attribute mutation, and removal.
type Page interface {
	Element(id string) (Element, bool)
	Remove(id string) bool
	IDs() []string
}

type Element interface {
	ID() string
	SetStyle(property, value string)
	ClearStyle(properties ...string)
	Styles() map[string]string
	SetAttribute(name, value string)
	RemoveAttribute(name string)
	Attributes() map[string]string
}

type Scheduler interface {
	AfterFunc(delay time.Duration, fn func()) Timer
}

type Timer interface {
	Stop() bool
}

type Metrics interface {
	AdInteraction(action string, outcome domain.AdOutcome)
	StorageFailure(op string)
	SessionsActive(count int)
}

type PasswordHasher interface {
	Hash(secret string) (string, error)
}

type noopMetrics struct{}

func (noopMetrics) AdInteraction(string, domain.AdOutcome) {}
func (noopMetrics) StorageFailure(string)                  {}
func (noopMetrics) SessionsActive(int)                     {}

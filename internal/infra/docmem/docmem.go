// Package docmem is the in-process document store used when no database is
// configured.
package docmem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"bizzshort/internal/domain"
	"bizzshort/internal/usecase"
)

type Store struct {
	mu   sync.RWMutex
	docs map[domain.Collection]map[string]domain.Document
}

func New() *Store {
	return &Store{docs: make(map[domain.Collection]map[string]domain.Document)}
}

func (s *Store) Create(ctx context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(doc.Collection)
	if _, exists := bucket[doc.ID]; exists {
		return domain.ErrConflict
	}
	bucket[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *Store) Get(ctx context.Context, collection domain.Collection, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return domain.Document{}, domain.ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *Store) Replace(ctx context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(doc.Collection)
	if _, exists := bucket[doc.ID]; !exists {
		return domain.ErrNotFound
	}
	bucket[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection domain.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[collection][id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.docs[collection], id)
	return nil
}

func (s *Store) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	s.mu.RLock()
	matched := make([]domain.Document, 0)
	for _, doc := range s.docs[filter.Collection] {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if filter.Offset >= len(matched) {
		return []domain.Document{}, nil
	}
	end := filter.Offset + filter.PageSize()
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]domain.Document, 0, end-filter.Offset)
	for _, doc := range matched[filter.Offset:end] {
		out = append(out, cloneDocument(doc))
	}
	return out, nil
}

func (s *Store) bucket(c domain.Collection) map[string]domain.Document {
	bucket, ok := s.docs[c]
	if !ok {
		bucket = make(map[string]domain.Document)
		s.docs[c] = bucket
	}
	return bucket
}

func matches(doc domain.Document, f domain.DocumentFilter) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(doc.Title()), strings.ToLower(f.Query)) {
		return false
	}
	if f.Category != "" && doc.StringField("category") != f.Category {
		return false
	}
	if f.Language != "" && doc.StringField("language") != f.Language {
		return false
	}
	if f.Placement != "" && doc.StringField("placement") != f.Placement {
		return false
	}
	return true
}

func cloneDocument(doc domain.Document) domain.Document {
	fields := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		fields[k] = v
	}
	doc.Fields = fields
	return doc
}

// AuditLog keeps audit events in append order.
type AuditLog struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) Append(ctx context.Context, event domain.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.events); n > 0 && l.events[n-1].Seq >= event.Seq {
		return domain.ErrConflict
	}
	l.events = append(l.events, event)
	return nil
}

func (l *AuditLog) Last(ctx context.Context) (domain.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return domain.AuditEvent{}, domain.ErrNotFound
	}
	return l.events[len(l.events)-1], nil
}

// List returns events in sequence order, optionally for one collection. A
// limit of zero returns everything.
func (l *AuditLog) List(ctx context.Context, collection domain.Collection, limit int) ([]domain.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.AuditEvent, 0)
	for _, event := range l.events {
		if collection != "" && event.Collection != collection {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var (
	_ usecase.DocumentRepository = (*Store)(nil)
	_ usecase.AuditRepository    = (*AuditLog)(nil)
)

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bizzshort/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContentService struct {
	Docs   DocumentRepository
	Hasher PasswordHasher
	Audit  *AuditTrail
	Now    func() time.Time
	NewID  func() string
	Log    *zap.Logger
}

type ListResult struct {
	Items      []domain.Document
	NextCursor string
}

func (s *ContentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ContentService) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *ContentService) Create(ctx context.Context, collection domain.Collection, fields map[string]any, actor string) (domain.Document, error) {
	if s.Docs == nil {
		return domain.Document{}, errors.New("document repository required")
	}
	normalized, err := s.prepare(collection, fields)
	if err != nil {
		return domain.Document{}, err
	}
	id := uuid.NewString()
	if s.NewID != nil {
		id = s.NewID()
	}
	now := s.now()
	doc := domain.Document{
		ID:         id,
		Collection: collection,
		Fields:     normalized,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Docs.Create(ctx, doc); err != nil {
		return domain.Document{}, err
	}
	s.audit(ctx, domain.AuditCreate, doc, actor)
	return Redact(doc), nil
}

func (s *ContentService) Get(ctx context.Context, collection domain.Collection, id string) (domain.Document, error) {
	if s.Docs == nil {
		return domain.Document{}, errors.New("document repository required")
	}
	if _, ok := domain.SchemaFor(collection); !ok {
		return domain.Document{}, domain.ErrNotFound
	}
	doc, err := s.Docs.Get(ctx, collection, id)
	if err != nil {
		return domain.Document{}, err
	}
	return Redact(doc), nil
}

// Replace overwrites every field of an existing document. CreatedAt is kept.
func (s *ContentService) Replace(ctx context.Context, collection domain.Collection, id string, fields map[string]any, actor string) (domain.Document, error) {
	if s.Docs == nil {
		return domain.Document{}, errors.New("document repository required")
	}
	normalized, err := s.prepare(collection, fields)
	if err != nil {
		return domain.Document{}, err
	}
	existing, err := s.Docs.Get(ctx, collection, id)
	if err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{
		ID:         existing.ID,
		Collection: collection,
		Fields:     normalized,
		CreatedAt:  existing.CreatedAt,
		UpdatedAt:  s.now(),
	}
	if err := s.Docs.Replace(ctx, doc); err != nil {
		return domain.Document{}, err
	}
	s.audit(ctx, domain.AuditReplace, doc, actor)
	return Redact(doc), nil
}

func (s *ContentService) Delete(ctx context.Context, collection domain.Collection, id, actor string) error {
	if s.Docs == nil {
		return errors.New("document repository required")
	}
	if _, ok := domain.SchemaFor(collection); !ok {
		return domain.ErrNotFound
	}
	existing, err := s.Docs.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := s.Docs.Delete(ctx, collection, id); err != nil {
		return err
	}
	s.audit(ctx, domain.AuditDelete, existing, actor)
	return nil
}

// List returns one page, newest first. The cursor is an opaque offset.
func (s *ContentService) List(ctx context.Context, filter domain.DocumentFilter, cursor string) (ListResult, error) {
	if s.Docs == nil {
		return ListResult{}, errors.New("document repository required")
	}
	if _, ok := domain.SchemaFor(filter.Collection); !ok {
		return ListResult{}, domain.ErrNotFound
	}
	offset, err := decodeCursor(cursor)
	if err != nil {
		return ListResult{}, err
	}
	filter.Offset = offset
	filter.Limit = filter.PageSize()
	docs, err := s.Docs.List(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	out := ListResult{Items: make([]domain.Document, 0, len(docs))}
	for _, doc := range docs {
		out.Items = append(out.Items, Redact(doc))
	}
	if len(docs) == filter.Limit {
		out.NextCursor = strconv.Itoa(offset + len(docs))
	}
	return out, nil
}

// ActiveAds lists advertisements that are switched on and inside their
// schedule. An empty placement matches every slot.
func (s *ContentService) ActiveAds(ctx context.Context, placement string) ([]domain.Document, error) {
	if s.Docs == nil {
		return nil, errors.New("document repository required")
	}
	now := s.now()
	filter := domain.DocumentFilter{
		Collection: domain.CollectionAdvertisements,
		Placement:  placement,
		Limit:      domain.MaxPageSize,
	}
	var out []domain.Document
	for {
		docs, err := s.Docs.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if doc.ActiveAt(now) {
				out = append(out, doc)
			}
		}
		if len(docs) < filter.Limit {
			return out, nil
		}
		filter.Offset += len(docs)
	}
}

// SelectAdsFor adapts ActiveAds into a page session ad picker that honours
// the banner and sidebar switches of the profile.
func (s *ContentService) SelectAdsFor(placement string) SelectAds {
	return func(ctx context.Context, prefs domain.AdPreferences) ([]string, error) {
		ads, err := s.ActiveAds(ctx, placement)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(ads))
		for _, ad := range ads {
			if prefs.AllowsPlacement(ad.StringField("placement")) {
				ids = append(ids, ad.ID)
			}
		}
		return ids, nil
	}
}

func (s *ContentService) prepare(collection domain.Collection, fields map[string]any) (map[string]any, error) {
	schema, ok := domain.SchemaFor(collection)
	if !ok {
		return nil, domain.ErrNotFound
	}
	normalized, err := schema.Normalize(fields)
	if err != nil {
		return nil, err
	}
	for _, name := range schema.Secrets() {
		raw, ok := normalized[name].(string)
		if !ok {
			continue
		}
		if s.Hasher == nil {
			return nil, fmt.Errorf("password hasher required for %s", collection)
		}
		hashed, err := s.Hasher.Hash(raw)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		normalized[name] = hashed
	}
	return normalized, nil
}

func (s *ContentService) audit(ctx context.Context, action domain.AuditAction, doc domain.Document, actor string) {
	if s.Audit == nil {
		return
	}
	if _, err := s.Audit.Record(ctx, action, doc, actor); err != nil {
		s.logger().Warn("audit append failed",
			zap.String("collection", string(doc.Collection)),
			zap.String("id", doc.ID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// Redact drops secret fields before a document leaves the service.
func Redact(doc domain.Document) domain.Document {
	schema, ok := domain.SchemaFor(doc.Collection)
	if !ok {
		return doc
	}
	secrets := schema.Secrets()
	if len(secrets) == 0 {
		return doc
	}
	fields := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	for _, name := range secrets {
		delete(fields, name)
	}
	doc.Fields = fields
	return doc
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, &domain.ValidationError{Field: "cursor", Reason: "is invalid"}
	}
	return offset, nil
}

package db

import (
	"context"
	"encoding/json"
	"fmt"

	"bizzshort/internal/domain"
	"bizzshort/internal/usecase"

	"gorm.io/gorm"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc domain.Document) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := documentModelFromDomain(doc)
	if err != nil {
		return err
	}
	return mapError(r.db.WithContext(ctx).Create(&model).Error)
}

func (r *DocumentRepository) Get(ctx context.Context, collection domain.Collection, id string) (domain.Document, error) {
	if r.db == nil {
		return domain.Document{}, errDBUnavailable
	}
	var model DocumentModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND collection = ?", id, string(collection)).
		First(&model).Error
	if err != nil {
		return domain.Document{}, mapError(err)
	}
	return documentFromModel(model)
}

func (r *DocumentRepository) Replace(ctx context.Context, doc domain.Document) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := documentModelFromDomain(doc)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("id = ? AND collection = ?", model.ID, model.Collection).
		Updates(map[string]any{
			"title":      model.Title,
			"category":   model.Category,
			"language":   model.Language,
			"placement":  model.Placement,
			"payload":    model.Payload,
			"updated_at": model.UpdatedAt,
		})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, collection domain.Collection, id string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Where("id = ? AND collection = ?", id, string(collection)).
		Delete(&DocumentModel{})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Where("collection = ?", string(filter.Collection))
	if filter.Query != "" {
		q = q.Where("title ILIKE ?", likePattern(filter.Query))
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Language != "" {
		q = q.Where("language = ?", filter.Language)
	}
	if filter.Placement != "" {
		q = q.Where("placement = ?", filter.Placement)
	}
	var models []DocumentModel
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(filter.PageSize()).
		Offset(filter.Offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(models))
	for _, model := range models {
		doc, err := documentFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func documentModelFromDomain(doc domain.Document) (DocumentModel, error) {
	payload, err := json.Marshal(doc.Fields)
	if err != nil {
		return DocumentModel{}, fmt.Errorf("encode payload: %w", err)
	}
	return DocumentModel{
		ID:         doc.ID,
		Collection: string(doc.Collection),
		Title:      doc.Title(),
		Category:   doc.StringField("category"),
		Language:   doc.StringField("language"),
		Placement:  doc.StringField("placement"),
		Payload:    payload,
		CreatedAt:  doc.CreatedAt.UTC(),
		UpdatedAt:  doc.UpdatedAt.UTC(),
	}, nil
}

func documentFromModel(model DocumentModel) (domain.Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(model.Payload, &fields); err != nil {
		return domain.Document{}, fmt.Errorf("decode payload for %s: %w", model.ID, err)
	}
	return domain.Document{
		ID:         model.ID,
		Collection: domain.Collection(model.Collection),
		Fields:     fields,
		CreatedAt:  model.CreatedAt.UTC(),
		UpdatedAt:  model.UpdatedAt.UTC(),
	}, nil
}

var _ usecase.DocumentRepository = (*DocumentRepository)(nil)

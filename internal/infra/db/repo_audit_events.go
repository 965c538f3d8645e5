package db

import (
	"context"

	"bizzshort/internal/domain"
	"bizzshort/internal/usecase"

	"gorm.io/gorm"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AuditEventModel{
		ID:            event.ID,
		Seq:           event.Seq,
		Action:        string(event.Action),
		Collection:    string(event.Collection),
		DocumentID:    event.DocumentID,
		ActorHash:     event.ActorHash,
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt.UTC(),
	}
	return mapError(r.db.WithContext(ctx).Create(&model).Error)
}

func (r *AuditEventRepository) Last(ctx context.Context) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	var model AuditEventModel
	if err := r.db.WithContext(ctx).Order("seq DESC").First(&model).Error; err != nil {
		return domain.AuditEvent{}, mapError(err)
	}
	return auditEventFromModel(model), nil
}

func (r *AuditEventRepository) List(ctx context.Context, collection domain.Collection, limit int) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Order("seq ASC")
	if collection != "" {
		q = q.Where("collection = ?", string(collection))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []AuditEventModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		out = append(out, auditEventFromModel(model))
	}
	return out, nil
}

func auditEventFromModel(model AuditEventModel) domain.AuditEvent {
	return domain.AuditEvent{
		ID:            model.ID,
		Seq:           model.Seq,
		Action:        domain.AuditAction(model.Action),
		Collection:    domain.Collection(model.Collection),
		DocumentID:    model.DocumentID,
		ActorHash:     model.ActorHash,
		PayloadHash:   model.PayloadHash,
		PrevEventHash: model.PrevEventHash,
		EventHash:     model.EventHash,
		CreatedAt:     model.CreatedAt.UTC(),
	}
}

var _ usecase.AuditRepository = (*AuditEventRepository)(nil)

package db

import (
	"context"
	"fmt"
	"time"

	"bizzshort/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileSettingsRepository is a durable key/value store over the
// profile_settings table.
type ProfileSettingsRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProfileSettingsRepository(db *gorm.DB) *ProfileSettingsRepository {
	return &ProfileSettingsRepository{db: db, now: time.Now}
}

func (r *ProfileSettingsRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if r.db == nil {
		return nil, domain.ErrStorageUnavailable
	}
	var model ProfileSettingModel
	if err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		if mapped := mapError(err); mapped == domain.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return copyBytes(model.Value), nil
}

func (r *ProfileSettingsRepository) Set(ctx context.Context, key string, value []byte) error {
	if r.db == nil {
		return domain.ErrStorageUnavailable
	}
	model := ProfileSettingModel{
		Key:       key,
		Value:     copyBytes(value),
		UpdatedAt: r.now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

var _ domain.KVStore = (*ProfileSettingsRepository)(nil)

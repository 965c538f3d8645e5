package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bizzshort/internal/domain"

	"go.uber.org/zap"
)

// JSONRecord persists one structured value under a fixed key of a durable
// store. Load never fails: anything short of a clean decode yields the default.
// Save reports failures and leaves the previously stored value in place.
type JSONRecord[T any] struct {
	store    domain.KVStore
	key      string
	defaults func() T
	log      *zap.Logger
	metrics  Metrics
}

func NewJSONRecord[T any](store domain.KVStore, key string, defaults func() T, logger *zap.Logger, metrics Metrics) *JSONRecord[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &JSONRecord[T]{
		store:    store,
		key:      key,
		defaults: defaults,
		log:      logger,
		metrics:  metrics,
	}
}

func (r *JSONRecord[T]) Key() string {
	return r.key
}

func (r *JSONRecord[T]) Load(ctx context.Context) T {
	if r.store == nil {
		r.warnLoad("unavailable", domain.ErrStorageUnavailable)
		return r.defaults()
	}
	raw, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.warnLoad("missing", err)
		} else {
			r.warnLoad("unavailable", err)
		}
		return r.defaults()
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		r.warnLoad("corrupt", err)
		return r.defaults()
	}
	return value
}

func (r *JSONRecord[T]) Save(ctx context.Context, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		r.metrics.StorageFailure("save")
		return fmt.Errorf("encode %s: %w", r.key, err)
	}
	if r.store == nil {
		r.metrics.StorageFailure("save")
		return domain.ErrStorageUnavailable
	}
	if err := r.store.Set(ctx, r.key, payload); err != nil {
		r.metrics.StorageFailure("save")
		return fmt.Errorf("write %s: %w", r.key, err)
	}
	return nil
}

func (r *JSONRecord[T]) warnLoad(reason string, err error) {
	if reason != "missing" {
		r.metrics.StorageFailure("load")
	}
	r.log.Warn("stored value unavailable, using default",
		zap.String("key", r.key),
		zap.String("reason", reason),
		zap.Error(err))
}

// ProfileService reads and writes the durable ad state of one browser profile.
type ProfileService struct {
	Store   domain.KVStore
	Log     *zap.Logger
	Metrics Metrics
}

func NewProfileService(store domain.KVStore, logger *zap.Logger, metrics Metrics) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ProfileService{Store: store, Log: logger, Metrics: metrics}
}

func (s *ProfileService) HiddenAdsRecord(profileID string) *JSONRecord[[]string] {
	return NewJSONRecord(s.Store, domain.ProfileKey(profileID, domain.HiddenAdIDsKey), func() []string {
		return []string{}
	}, s.Log, s.Metrics)
}

func (s *ProfileService) PreferencesRecord(profileID string) *JSONRecord[domain.AdPreferences] {
	return NewJSONRecord(s.Store, domain.ProfileKey(profileID, domain.AdPreferencesKey), domain.DefaultAdPreferences, s.Log, s.Metrics)
}

func (s *ProfileService) Preferences(ctx context.Context, profileID string) domain.AdPreferences {
	return s.PreferencesRecord(profileID).Load(ctx)
}

// SavePreferences overwrites the whole record. There is no field merge here.
func (s *ProfileService) SavePreferences(ctx context.Context, profileID string, prefs domain.AdPreferences) error {
	return s.PreferencesRecord(profileID).Save(ctx, prefs)
}

func (s *ProfileService) HiddenAds(ctx context.Context, profileID string) *domain.HiddenAdSet {
	return domain.NewHiddenAdSet(s.HiddenAdsRecord(profileID).Load(ctx)...)
}

package domain

import "context"

// KVStore is the durable key-value store that backs per-profile state.
// Get returns ErrNotFound for a missing key. Any other failure is best-effort
// from the caller's point of view.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

func ProfileKey(profileID, key string) string {
	return "profile:" + profileID + ":" + key
}

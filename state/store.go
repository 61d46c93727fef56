// Package state persists the small process-wide key/value entries that must
// survive restarts: the sync watermark, the bearer token, the auto-resume
// flag. No schema versioning beyond presence/absence checks.
package state

import "context"

// Store is a minimal key/value store
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

package state

import (
	"context"
	"strconv"
	"time"

	"github.com/keywatch/go-keywatch-client/types"
)

// State entry keys. Simple presence/absence semantics, no versioning.
const (
	keyLastFetch      = "last_successful_fetch"
	keyEarliestNext   = "earliest_next_fetch"
	keyAuthToken      = "auth_token"
	keyAuthExpires    = "auth_token_expires"
	keyAutoResume     = "auto_resume"
	keyLastSubmission = "last_submission_id"
	keyLastDigest     = "last_batch_digest"
)

// SyncState wraps a Store with typed accessors for the entries this client
// persists. Timestamps are stored as RFC3339 strings.
type SyncState struct {
	store Store
}

func NewSyncState(store Store) *SyncState {
	return &SyncState{store: store}
}

func (s *SyncState) getTime(ctx context.Context, key string) (*time.Time, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	t, pErr := time.Parse(time.RFC3339, raw)
	if pErr != nil {
		// treat a corrupt entry as absent rather than wedging the client
		return nil, nil
	}
	return &t, nil
}

func (s *SyncState) setTime(ctx context.Context, key string, t time.Time) error {
	return s.store.Set(ctx, key, t.UTC().Format(time.RFC3339))
}

// LastSuccessfulFetch is the watermark: advances monotonically, only after a
// fully successful merge.
func (s *SyncState) LastSuccessfulFetch(ctx context.Context) (*time.Time, error) {
	return s.getTime(ctx, keyLastFetch)
}

func (s *SyncState) SetLastSuccessfulFetch(ctx context.Context, t time.Time) error {
	current, err := s.LastSuccessfulFetch(ctx)
	if err != nil {
		return err
	}
	if current != nil && current.After(t) {
		return nil
	}
	return s.setTime(ctx, keyLastFetch, t)
}

// EarliestNextFetch is the server-imposed floor for the next fetch attempt
func (s *SyncState) EarliestNextFetch(ctx context.Context) (*time.Time, error) {
	return s.getTime(ctx, keyEarliestNext)
}

func (s *SyncState) SetEarliestNextFetch(ctx context.Context, t time.Time) error {
	return s.setTime(ctx, keyEarliestNext, t)
}

// Token returns the persisted bearer token, or nil when none is held
func (s *SyncState) Token(ctx context.Context) (*types.AccessToken, error) {
	value, ok, err := s.store.Get(ctx, keyAuthToken)
	if err != nil || !ok || value == "" {
		return nil, err
	}
	token := &types.AccessToken{Value: value}
	if expires, tErr := s.getTime(ctx, keyAuthExpires); tErr == nil && expires != nil {
		token.ExpiresAt = expires
	}
	return token, nil
}

func (s *SyncState) SetToken(ctx context.Context, token *types.AccessToken) error {
	if err := s.store.Set(ctx, keyAuthToken, token.Value); err != nil {
		return err
	}
	if token.ExpiresAt != nil {
		return s.setTime(ctx, keyAuthExpires, *token.ExpiresAt)
	}
	return s.store.Delete(ctx, keyAuthExpires)
}

func (s *SyncState) ClearToken(ctx context.Context) error {
	if err := s.store.Delete(ctx, keyAuthToken); err != nil {
		return err
	}
	return s.store.Delete(ctx, keyAuthExpires)
}

// AutoResume reports whether background cycles should be scheduled at boot
func (s *SyncState) AutoResume(ctx context.Context) (bool, error) {
	raw, ok, err := s.store.Get(ctx, keyAutoResume)
	if err != nil || !ok {
		return false, err
	}
	enabled, _ := strconv.ParseBool(raw)
	return enabled, nil
}

func (s *SyncState) SetAutoResume(ctx context.Context, enabled bool) error {
	return s.store.Set(ctx, keyAutoResume, strconv.FormatBool(enabled))
}

// LastSubmissionID remembers the identifier the server handed back on the
// previous key submission, so a resubmit can reference it.
func (s *SyncState) LastSubmissionID(ctx context.Context) (string, error) {
	raw, _, err := s.store.Get(ctx, keyLastSubmission)
	return raw, err
}

func (s *SyncState) SetLastSubmissionID(ctx context.Context, id string) error {
	return s.store.Set(ctx, keyLastSubmission, id)
}

// LastBatchDigest is the xxhash of the last successfully merged fetch body
func (s *SyncState) LastBatchDigest(ctx context.Context) (uint64, error) {
	raw, ok, err := s.store.Get(ctx, keyLastDigest)
	if err != nil || !ok {
		return 0, err
	}
	digest, _ := strconv.ParseUint(raw, 16, 64)
	return digest, nil
}

func (s *SyncState) SetLastBatchDigest(ctx context.Context, digest uint64) error {
	return s.store.Set(ctx, keyLastDigest, strconv.FormatUint(digest, 16))
}

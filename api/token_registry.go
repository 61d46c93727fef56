package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/keywatch/go-keywatch-client/state"
)

const tokenTTL = 30 * 24 * time.Hour

// TokenRegistry issues and validates the reference server's bearer tokens.
// Tokens live in the state store with their expiry as the stored value.
type TokenRegistry struct {
	store state.Store
	now   func() time.Time
}

func NewTokenRegistry(store state.Store) *TokenRegistry {
	return &TokenRegistry{store: store, now: time.Now}
}

func (tr *TokenRegistry) Issue(ctx context.Context) (string, time.Time, error) {
	token := uuid.NewString()
	expires := tr.now().UTC().Add(tokenTTL)
	if err := tr.store.Set(ctx, "srvtoken:"+token, expires.Format(time.RFC3339)); err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (tr *TokenRegistry) Valid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	raw, ok, err := tr.store.Get(ctx, "srvtoken:"+token)
	if err != nil || !ok {
		return false, err
	}
	expires, pErr := time.Parse(time.RFC3339, raw)
	if pErr != nil {
		return false, nil
	}
	return tr.now().Before(expires), nil
}

package services

import (
	"context"

	"github.com/go-kit/log/level"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/state"
	"github.com/keywatch/go-keywatch-client/types"
)

// AuthService owns the bearer token lifecycle: it supplies the current
// token, persists replacements, and drops a token the server has rejected.
// Tokens survive process restarts through the state store.
type AuthService struct {
	state *state.SyncState
}

func NewAuthService(syncState *state.SyncState) *AuthService {
	return &AuthService{state: syncState}
}

// Current returns the persisted token, or nil when none is held. Absence is
// not an error; whether that matters is the target operation's concern.
func (as *AuthService) Current(ctx context.Context) (*types.AccessToken, error) {
	return as.state.Token(ctx)
}

// Persist replaces the held token
func (as *AuthService) Persist(ctx context.Context, token *types.AccessToken) error {
	if err := as.state.SetToken(ctx, token); err != nil {
		level.Error(global.Logger).Log("error", err, "message", "failed to persist auth token")
		return err
	}
	return nil
}

// Invalidate drops the held token after a server rejection
func (as *AuthService) Invalidate(ctx context.Context) error {
	return as.state.ClearToken(ctx)
}

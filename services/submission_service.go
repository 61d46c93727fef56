package services

import (
	"context"

	"github.com/go-kit/log/level"
	"github.com/keywatch/go-keywatch-client/adapter"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/state"
	"github.com/keywatch/go-keywatch-client/types"
)

// SubmissionService uploads the device's own keys and remembers the
// identifier the server hands back, so a later resubmission (e.g. after the
// user amends the report form) references the original submission.
type SubmissionService struct {
	sync  *SyncService
	state *state.SyncState
}

func NewSubmissionService(sync *SyncService, syncState *state.SyncState) *SubmissionService {
	return &SubmissionService{
		sync:  sync,
		state: syncState,
	}
}

// Upload submits keys with the previously issued identifier attached when
// one is known, and persists the identifier the server returns.
func (ss *SubmissionService) Upload(ctx context.Context, form []adapter.FormField, keys []types.TemporaryExposureKey) (string, error) {
	previous, err := ss.state.LastSubmissionID(ctx)
	if err != nil {
		return "", err
	}

	identifier, sErr := ss.sync.Submit(ctx, form, keys, previous)
	if sErr != nil {
		return "", sErr
	}

	if identifier != "" && identifier != previous {
		if pErr := ss.state.SetLastSubmissionID(ctx, identifier); pErr != nil {
			level.Error(global.Logger).Log("error", pErr, "message", "failed to persist submission identifier")
			return identifier, pErr
		}
	}
	return identifier, nil
}

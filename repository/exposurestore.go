package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/keywatch/go-keywatch-client/types"
)

// ExposureStore persists exposure match results. Entities are create-only;
// the only permitted update is the notification state transition.
type ExposureStore struct {
	repo Repository
	now  func() time.Time
}

func NewExposureStore(repo Repository) *ExposureStore {
	return &ExposureStore{repo: repo, now: time.Now}
}

// exposureID derives the document ID from the contact itself, so a
// capability re-reporting the same match on a later run hits the same entity
func exposureID(contact types.ContactRecord) string {
	digest := xxhash.Sum64String(fmt.Sprintf("%s|%d", contact.OccurredAt.UTC().Format(time.RFC3339Nano), contact.DurationSeconds))
	return fmt.Sprintf("exposure-%016x", digest)
}

// Create persists one contact record as a new unread exposure entity and
// reports whether it was created. A contact already on record is absorbed,
// keeping its existing state.
func (es *ExposureStore) Create(ctx context.Context, contact types.ContactRecord) (*types.Exposure, bool, error) {
	exposure := &types.Exposure{
		ID:              exposureID(contact),
		DurationSeconds: contact.DurationSeconds,
		OccurredAt:      contact.OccurredAt,
		State:           types.ExposureStateUnread,
		Created:         es.now().UTC(),
	}
	err := es.repo.Save(ctx, exposure.ID, exposure)
	if errors.Is(err, types.ErrConflict) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return exposure, true, nil
}

// Unnotified returns all exposures whose notification has not been confirmed
func (es *ExposureStore) Unnotified(ctx context.Context) ([]types.Exposure, error) {
	docs, err := es.repo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []types.Exposure
	for _, raw := range docs {
		var exposure types.Exposure
		if mErr := MapToObject(raw, &exposure); mErr != nil {
			return nil, mErr
		}
		if exposure.State != types.ExposureStateNotified {
			out = append(out, exposure)
		}
	}
	return out, nil
}

// MarkNotified flips an exposure to the notified state. Called only after
// the notification was actually dispatched.
func (es *ExposureStore) MarkNotified(ctx context.Context, id string) error {
	raw, err := es.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	var exposure types.Exposure
	if mErr := MapToObject(raw, &exposure); mErr != nil {
		return mErr
	}
	exposure.State = types.ExposureStateNotified
	return es.repo.Update(ctx, id, &exposure)
}

// MarkRead flips an unread exposure to read when the user has seen it
func (es *ExposureStore) MarkRead(ctx context.Context, id string) error {
	raw, err := es.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	var exposure types.Exposure
	if mErr := MapToObject(raw, &exposure); mErr != nil {
		return mErr
	}
	if exposure.State == types.ExposureStateUnread {
		exposure.State = types.ExposureStateRead
		return es.repo.Update(ctx, id, &exposure)
	}
	return nil
}

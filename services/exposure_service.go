package services

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-kit/log/level"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/repository"
	"github.com/keywatch/go-keywatch-client/types"
)

// ExposureTopic is the local notification topic exposure events are
// published on. Subscribers render the user-facing notification.
const ExposureTopic = "exposures.detected"

// ExposureService persists exposure match results and dispatches local
// notifications for them. Entities are create-only; an entity is marked
// notified only after its notification was actually published, so a crash
// before confirmation causes a retry instead of a silent drop.
type ExposureService struct {
	store     *repository.ExposureStore
	publisher message.Publisher
}

func NewExposureService(store *repository.ExposureStore, publisher message.Publisher) *ExposureService {
	return &ExposureService{
		store:     store,
		publisher: publisher,
	}
}

// PersistResults writes each contact record as an exposure entity. The ID is
// derived from the contact, so a match re-reported on a later run is absorbed
// instead of accumulating duplicates.
func (es *ExposureService) PersistResults(ctx context.Context, contacts []types.ContactRecord) (int, error) {
	created := 0
	for _, contact := range contacts {
		_, added, err := es.store.Create(ctx, contact)
		if err != nil {
			return created, err
		}
		if added {
			created++
		}
	}
	return created, nil
}

// DispatchNotifications publishes a notification for every exposure not yet
// confirmed as notified, marking each one only after a successful publish.
func (es *ExposureService) DispatchNotifications(ctx context.Context) (int, error) {
	pending, err := es.store.Unnotified(ctx)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, exposure := range pending {
		payload, mErr := json.Marshal(&exposure)
		if mErr != nil {
			return dispatched, mErr
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if pErr := es.publisher.Publish(ExposureTopic, msg); pErr != nil {
			level.Error(global.Logger).Log("error", pErr, "message", "notification dispatch failed", "exposure", exposure.ID)
			return dispatched, pErr
		}
		if uErr := es.store.MarkNotified(ctx, exposure.ID); uErr != nil {
			return dispatched, uErr
		}
		dispatched++
	}
	return dispatched, nil
}

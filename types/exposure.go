package types

import "time"

// ExposureState is the notification lifecycle of a persisted exposure
type ExposureState string

const (
	ExposureStateUnread   ExposureState = "unread"
	ExposureStateRead     ExposureState = "read"
	ExposureStateNotified ExposureState = "notified"
)

// ContactRecord is one matched proximity contact reported by the detection capability
type ContactRecord struct {
	DurationSeconds int       `json:"durationSeconds"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// ExposureSummary is the detection capability's report after all keys were submitted
type ExposureSummary struct {
	MatchedKeyCount int `json:"matchedKeyCount"`
}

// Exposure is a persisted contact record. Created once per detection run by
// the orchestrator, updated only by the notification step, never deleted.
type Exposure struct {
	ID              string        `json:"id"`
	DurationSeconds int           `json:"durationSeconds"`
	OccurredAt      time.Time     `json:"occurredAt"`
	State           ExposureState `json:"state"`
	Created         time.Time     `json:"created"`
}

package types

import "time"

// ListType tells the merge engine whether a fetch response replaces the whole
// local key set or only carries a delta.
type ListType string

const (
	ListTypeFull    ListType = "FULL"
	ListTypePartial ListType = "PARTIAL"
)

// KeyBatch is the unit of a single fetch response after decoding.
type KeyBatch struct {
	Status       string
	Date         time.Time
	List         ListType
	MinRetryDate *time.Time // earliest time the server wants to be contacted again
	Keys         []TemporaryExposureKey
	DeletedKeys  []TemporaryExposureKey
}

// MergeStats summarizes what a merge changed in the local store
type MergeStats struct {
	Added   int
	Removed int
}

package services

import (
	"context"
	"sync"

	"github.com/keywatch/go-keywatch-client/types"
)

// ExposureDetector is the device-local exposure matching capability. The
// implementation lives outside this repo (it wraps the platform's Bluetooth
// proximity and match-scoring machinery); only the contract matters here:
//
//   - MaxBatchSize may change between calls, and key submission must respect
//     the value advertised at the time of each AddKeys call
//   - after Finish, results are drained page by page until done is true
type ExposureDetector interface {
	MaxBatchSize() int
	AddKeys(ctx context.Context, keys []types.TemporaryExposureKey) error
	Finish(ctx context.Context) (*types.ExposureSummary, error)
	NextResultsPage(ctx context.Context, maxCount int) ([]types.ContactRecord, bool, error)
}

// Detector implementations register themselves at startup, the way external
// handler modules do; configuration selects one by name.
var (
	detectorsMu sync.RWMutex
	detectors   = make(map[string]ExposureDetector)
)

func RegisterDetector(name string, detector ExposureDetector) {
	detectorsMu.Lock()
	defer detectorsMu.Unlock()
	detectors[name] = detector
}

func GetDetector(name string) (ExposureDetector, bool) {
	detectorsMu.RLock()
	defer detectorsMu.RUnlock()
	d, ok := detectors[name]
	return d, ok
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log/level"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/metrics"
	"github.com/keywatch/go-keywatch-client/state"
	"github.com/keywatch/go-keywatch-client/types"
)

// retryDateClamp bounds how far into the future a server-supplied retry date
// can push the next fetch, regardless of what the server claims.
const retryDateClamp = 24 * time.Hour

// Fetcher is the slice of the sync client the orchestrator drives
type Fetcher interface {
	Fetch(ctx context.Context, since *time.Time) (*types.KeyBatch, uint64, error)
}

// CycleOutcome is the terminal result of one background sync cycle
type CycleOutcome struct {
	// Skipped is true when another cycle was already in flight; the trigger
	// was absorbed without doing work and without error.
	Skipped bool
	// Err is nil on a clean completion, otherwise it names the failed stage
	Err *types.CycleError
	// NextAttempt is when the following cycle should run
	NextAttempt time.Time
}

// Orchestrator sequences fetch, merge, device matching, result persistence
// and notification into one cycle. At most one cycle runs at a time; state
// is only committed at stage boundaries, so an aborted cycle never advances
// the watermark past the last fully merged batch.
type Orchestrator struct {
	fetcher   Fetcher
	merge     *MergeService
	exposures *ExposureService
	detector  ExposureDetector
	state     *state.SyncState

	minInterval time.Duration
	pageSize    int
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

func NewOrchestrator(fetcher Fetcher, merge *MergeService, exposures *ExposureService, detector ExposureDetector, syncState *state.SyncState, minInterval time.Duration, pageSize int) *Orchestrator {
	if minInterval <= 0 {
		minInterval = time.Hour
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Orchestrator{
		fetcher:     fetcher,
		merge:       merge,
		exposures:   exposures,
		detector:    detector,
		state:       syncState,
		minInterval: minInterval,
		pageSize:    pageSize,
		now:         time.Now,
	}
}

// RunCycle executes one full sync cycle. A concurrent trigger observes the
// in-flight cycle and returns immediately as Skipped. Failures never
// propagate as panics or raw errors; every outcome is a CycleOutcome.
func (o *Orchestrator) RunCycle(ctx context.Context) CycleOutcome {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return CycleOutcome{Skipped: true}
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	outcome := o.runStages(ctx)
	outcome.NextAttempt = o.nextAttempt(ctx)

	if outcome.Err != nil {
		metrics.SyncCyclesTotal.WithLabelValues("error").Inc()
		metrics.SyncStageFailures.WithLabelValues(string(outcome.Err.Stage)).Inc()
		level.Error(global.Logger).Log("error", outcome.Err, "message", "sync cycle failed", "next", outcome.NextAttempt)
	} else {
		metrics.SyncCyclesTotal.WithLabelValues("clean").Inc()
	}
	return outcome
}

func (o *Orchestrator) runStages(ctx context.Context) CycleOutcome {
	now := o.now()

	earliest, err := o.state.EarliestNextFetch(ctx)
	if err != nil {
		return fail(types.StageFetch, err)
	}

	if earliest != nil && earliest.After(now) {
		// the server asked not to be contacted yet; detection still runs on
		// the locally held keys
		level.Info(global.Logger).Log("message", "fetch deferred by server retry date", "earliest", earliest)
	} else {
		if outcome, failed := o.fetchAndMerge(ctx, now); failed {
			return outcome
		}
	}

	if cErr := ctx.Err(); cErr != nil {
		return fail(types.StageDetect, cErr)
	}

	contacts, dErr := o.detect(ctx)
	if dErr != nil {
		return fail(types.StageDetect, dErr)
	}

	if cErr := ctx.Err(); cErr != nil {
		return fail(types.StagePersist, cErr)
	}

	if pErr := o.persistAndNotify(ctx, contacts); pErr != nil {
		return fail(types.StagePersist, pErr)
	}
	return CycleOutcome{}
}

func (o *Orchestrator) fetchAndMerge(ctx context.Context, now time.Time) (CycleOutcome, bool) {
	since, err := o.state.LastSuccessfulFetch(ctx)
	if err != nil {
		return fail(types.StageFetch, err), true
	}

	batch, digest, fErr := o.fetcher.Fetch(ctx, since)
	if fErr != nil {
		return fail(types.StageFetch, fErr), true
	}

	if batch.MinRetryDate != nil {
		clamped := *batch.MinRetryDate
		if ceiling := now.Add(retryDateClamp); clamped.After(ceiling) {
			level.Warn(global.Logger).Log("message", "server retry date clamped", "server", batch.MinRetryDate, "clamped", ceiling)
			clamped = ceiling
		}
		if sErr := o.state.SetEarliestNextFetch(ctx, clamped); sErr != nil {
			return fail(types.StageFetch, sErr), true
		}
	}

	if cErr := ctx.Err(); cErr != nil {
		return fail(types.StageMerge, cErr), true
	}

	lastDigest, dErr := o.state.LastBatchDigest(ctx)
	if dErr != nil {
		return fail(types.StageMerge, dErr), true
	}
	if digest != 0 && digest == lastDigest {
		// byte-identical response; merging again would be a no-op
		level.Debug(global.Logger).Log("message", "fetch body unchanged, merge skipped", "digest", fmt.Sprintf("%x", digest))
	} else {
		stats, mErr := o.merge.Merge(ctx, batch)
		if mErr != nil {
			return fail(types.StageMerge, mErr), true
		}
		metrics.KeysMergedTotal.Add(float64(stats.Added))
		metrics.KeysRemovedTotal.Add(float64(stats.Removed))
		if sErr := o.state.SetLastBatchDigest(ctx, digest); sErr != nil {
			return fail(types.StageMerge, sErr), true
		}
	}

	// the watermark advances only after the merge fully succeeded
	if wErr := o.state.SetLastSuccessfulFetch(ctx, batch.Date); wErr != nil {
		return fail(types.StageMerge, wErr), true
	}
	return CycleOutcome{}, false
}

// detect hands every locally held key to the matching capability and drains
// its results. Key submission is split by the capability's batch limit as
// advertised at the time of each call; result retrieval is strictly
// sequential, one page after the other.
func (o *Orchestrator) detect(ctx context.Context) ([]types.ContactRecord, error) {
	keys, err := o.merge.Keys().All(ctx)
	if err != nil {
		return nil, err
	}

	for offset := 0; offset < len(keys); {
		limit := o.detector.MaxBatchSize()
		if limit <= 0 {
			limit = len(keys) - offset
		}
		end := offset + limit
		if end > len(keys) {
			end = len(keys)
		}
		if aErr := o.detector.AddKeys(ctx, keys[offset:end]); aErr != nil {
			return nil, aErr
		}
		offset = end
	}

	summary, fErr := o.detector.Finish(ctx)
	if fErr != nil {
		return nil, fErr
	}
	if summary.MatchedKeyCount == 0 {
		return nil, nil
	}

	var contacts []types.ContactRecord
	for {
		page, done, pErr := o.detector.NextResultsPage(ctx, o.pageSize)
		if pErr != nil {
			return nil, pErr
		}
		contacts = append(contacts, page...)
		if done {
			return contacts, nil
		}
	}
}

func (o *Orchestrator) persistAndNotify(ctx context.Context, contacts []types.ContactRecord) error {
	created, err := o.exposures.PersistResults(ctx, contacts)
	if err != nil {
		return err
	}
	metrics.ExposuresPersistedTotal.Add(float64(created))

	dispatched, nErr := o.exposures.DispatchNotifications(ctx)
	if nErr != nil {
		return nErr
	}
	metrics.NotificationsSentTotal.Add(float64(dispatched))
	return nil
}

// nextAttempt is the fixed minimum interval from now, or the server-imposed
// retry floor when that is later. Computed for every outcome: failures are
// not fatal, the next cycle always gets scheduled.
func (o *Orchestrator) nextAttempt(ctx context.Context) time.Time {
	next := o.now().Add(o.minInterval)
	if earliest, err := o.state.EarliestNextFetch(ctx); err == nil && earliest != nil && earliest.After(next) {
		next = *earliest
	}
	return next
}

func fail(stage types.Stage, cause error) CycleOutcome {
	return CycleOutcome{Err: &types.CycleError{Stage: stage, Cause: cause}}
}

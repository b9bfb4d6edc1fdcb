// Package refresh implements the timer-driven credential refresh
// scheduler (spec.md §4.G): a single dedicated goroutine that calls STS,
// installs the result into the credential store, and reschedules itself.
//
// Unlike the teacher's cron-based scheduler, refreshes fire at a
// computed duration (80% of remaining credential lifetime, or a fixed
// 10s backoff on failure) rather than a calendar expression, so there is
// no schedule string to parse; a single time.Timer drives the loop
// instead of github.com/robfig/cron/v3 (see DESIGN.md).
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/brightloop/mskiamauth/internal/credstore"
	"github.com/brightloop/mskiamauth/internal/logging"
	"github.com/brightloop/mskiamauth/internal/metrics"
	"github.com/brightloop/mskiamauth/internal/sts"
)

// Assumer is the subset of *sts.Client the scheduler depends on, so
// tests can drive the scheduler with a fake.
type Assumer interface {
	AssumeRole(ctx context.Context) (*sts.Result, error)
}

// Scheduler owns the single refresh timer. It never runs two refreshes
// concurrently with itself (spec.md §5).
type Scheduler struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
	assumer Assumer
	store   *credstore.Store
	enabled bool
	region  string
	metrics *metrics.Collector
	log     logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Scheduler. When enabled is false (STS mode disabled),
// the scheduler is inert: static credentials remain as configured and
// ScheduleNext/Start are no-ops (spec.md §4.G).
func New(enabled bool, region string, assumer Assumer, store *credstore.Store, mc *metrics.Collector) *Scheduler {
	return &Scheduler{
		assumer: assumer,
		store:   store,
		enabled: enabled,
		region:  region,
		metrics: mc,
		log:     logging.For("refresh"),
	}
}

// Start begins the refresh loop, firing immediately on the first tick.
// It is a no-op when the scheduler is disabled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.enabled {
		s.log.Info("STS mode disabled, refresh scheduler inert")
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.ScheduleNext(0)
}

// Stop cancels the scheduler and waits for any in-flight fire to finish
// (spec.md §5 shutdown: "stop the refresh timer, waiting for an
// in-flight fire to complete"). stopped is set before cancel so a fire
// already in progress can't re-arm a new timer via ScheduleNext (e.g.
// through store.Install's reschedule call) and extend the wait by a
// full refresh horizon.
func (s *Scheduler) Stop() {
	if !s.enabled {
		return
	}

	s.mu.Lock()
	s.stopped = true
	if s.timer != nil && s.timer.Stop() {
		// The stopped timer's callback will never run to call Done.
		s.wg.Done()
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// ScheduleNext arms the timer to fire after d, replacing any previously
// scheduled fire. It implements credstore.Rescheduler so the store can
// call it directly after install/record_failure. A no-op once Stop has
// been called, so an in-flight fire's reschedule can't outlive shutdown.
func (s *Scheduler) ScheduleNext(d time.Duration) {
	if !s.enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	if d < 0 {
		d = 0
	}
	s.wg.Add(1)
	s.timer = time.AfterFunc(d, func() {
		defer s.wg.Done()
		s.fire()
	})
}

func (s *Scheduler) fire() {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	result, err := s.assumer.AssumeRole(s.ctx)
	if err != nil {
		s.log.Warn("refresh failed: %v", err)
		if s.metrics != nil {
			s.metrics.RecordRefresh(false)
		}
		s.store.RecordFailure(err.Error())
		return
	}

	cred := credstore.Credential{
		AccessKeyID:     result.AccessKeyID,
		SecretAccessKey: result.SecretAccessKey,
		Region:          s.region,
		SessionToken:    result.SessionToken,
		ExpiresAtUnixMs: result.ExpiresAtUnixMs,
	}

	if err := s.store.Install(cred, time.Now()); err != nil {
		s.log.Error("refresh produced an unusable credential: %v", err)
		if s.metrics != nil {
			s.metrics.RecordRefresh(false)
		}
		s.store.RecordFailure(err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.RecordRefresh(true)
		s.metrics.SetCredentialExpiry(time.Until(time.UnixMilli(result.ExpiresAtUnixMs)))
	}
}

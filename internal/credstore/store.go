package credstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/brightloop/mskiamauth/internal/apperrors"
	"github.com/brightloop/mskiamauth/internal/logging"
)

// refreshHorizon is the fraction of remaining credential lifetime at
// which the scheduler re-fires after a successful install (spec.md §4.F/§4.G).
const refreshHorizon = 0.8

// failureBackoff is the fixed delay before the next refresh attempt after
// a failed install (spec.md §4.F/§4.G, §8 scenario 6).
const failureBackoff = 10 * time.Second

// Notifier wakes every connection worker blocked on missing credentials.
// Modeled as an interface the store consumes, rather than a back pointer
// to the owning client, to avoid a cyclic owning reference (spec.md §9).
type Notifier interface {
	WakeAll(reason string)
}

// ErrorReporter emits an authentication-error event to the client's
// asynchronous error stream (spec.md §6).
type ErrorReporter interface {
	ReportAuthError(text string)
}

// Rescheduler is told when the refresh scheduler should next fire.
type Rescheduler interface {
	ScheduleNext(d time.Duration)
}

// Store is the process-wide CredentialStore (spec.md §3/§4.F): at most
// one writer at a time, any number of consistent-snapshot readers.
type Store struct {
	mu sync.RWMutex

	current  *Credential
	lastErr  string
	stsMode  bool

	notifier    Notifier
	reporter    ErrorReporter
	rescheduler Rescheduler

	log logging.Logger
}

// New constructs a Store. stsMode controls snapshot()'s extra "session
// token required" check (spec.md §4.F).
func New(stsMode bool, notifier Notifier, reporter ErrorReporter, rescheduler Rescheduler) *Store {
	return &Store{
		stsMode:     stsMode,
		notifier:    notifier,
		reporter:    reporter,
		rescheduler: rescheduler,
		log:         logging.For("credstore"),
	}
}

// Install replaces the current credential as a whole. It rejects any
// credential whose expiry is not strictly in the future, leaving store
// state untouched (spec.md §3 invariant, §7 ErrCredentialExpired).
func (s *Store) Install(cred Credential, now time.Time) error {
	if cred.Expired(now) {
		return fmt.Errorf("%w: expires_at_unix_ms=%d now=%d", apperrors.ErrCredentialExpired, cred.ExpiresAtUnixMs, now.UnixMilli())
	}

	s.mu.Lock()
	s.current = &cred
	s.lastErr = ""
	s.mu.Unlock()

	if s.rescheduler != nil {
		var remaining time.Duration
		if cred.ExpiresAtUnixMs != NeverExpires {
			remaining = time.Duration(cred.ExpiresAtUnixMs-now.UnixMilli()) * time.Millisecond
		}
		next := time.Duration(float64(remaining) * refreshHorizon)
		s.rescheduler.ScheduleNext(next)
	}

	s.log.Info("installed new credential, region=%s sts=%v", cred.Region, cred.HasSessionToken())

	if s.notifier != nil {
		s.notifier.WakeAll("credentials installed")
	}

	return nil
}

// RecordFailure leaves the current credential untouched (it may still be
// usable if not yet expired), schedules the next refresh attempt 10s out,
// and debounces repeated identical error strings (spec.md §4.F).
func (s *Store) RecordFailure(errstr string) {
	s.mu.Lock()
	isNew := errstr != s.lastErr
	if isNew {
		s.lastErr = errstr
	}
	s.mu.Unlock()

	if s.rescheduler != nil {
		s.rescheduler.ScheduleNext(failureBackoff)
	}

	if !isNew {
		return
	}

	s.log.Warn("credential refresh failed: %s", errstr)

	if s.reporter != nil {
		s.reporter.ReportAuthError(fmt.Sprintf("Failed to acquire SASL AWS_MSK_IAM credential: %s", errstr))
	}
}

// Snapshot returns a cloned Credential suitable for a single connection
// attempt. The clone is immutable for the lifetime of that attempt, so a
// mid-flight refresh in the store cannot desynchronize an in-progress
// authentication (spec.md §3 AuthState invariant).
func (s *Store) Snapshot() (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Credential{}, fmt.Errorf("%w", apperrors.ErrNoCredentialsAvailable)
	}
	if s.stsMode && !s.current.HasSessionToken() {
		return Credential{}, fmt.Errorf("%w: session token required but missing", apperrors.ErrNoCredentialsAvailable)
	}

	return *s.current, nil
}

// LastError returns the current last-error string (empty if none since
// the last success), for observability/debugging.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SetRescheduler wires the refresh scheduler into the store after both
// have been constructed, breaking the natural construction cycle: the
// scheduler needs a *Store to call Install/RecordFailure on, while the
// store needs a Rescheduler to arm after those same calls (spec.md §4.F/§4.G).
func (s *Store) SetRescheduler(r Rescheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescheduler = r
}

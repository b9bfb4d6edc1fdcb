package credstore

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brightloop/mskiamauth/internal/apperrors"
)

type recordingNotifier struct {
	wakes int32
}

func (n *recordingNotifier) WakeAll(reason string) {
	atomic.AddInt32(&n.wakes, 1)
}

type recordingReporter struct {
	events []string
}

func (r *recordingReporter) ReportAuthError(text string) {
	r.events = append(r.events, text)
}

type recordingRescheduler struct {
	scheduled []time.Duration
}

func (r *recordingRescheduler) ScheduleNext(d time.Duration) {
	r.scheduled = append(r.scheduled, d)
}

func TestInstallThenSnapshotReturnsInstalledCredential(t *testing.T) {
	notifier := &recordingNotifier{}
	store := New(false, notifier, nil, nil)

	now := time.Unix(1_700_000_000, 0)
	cred := Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1", ExpiresAtUnixMs: now.Add(time.Hour).UnixMilli()}

	if err := store.Install(cred, now); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	got, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got != cred {
		t.Fatalf("Snapshot() = %+v, want %+v", got, cred)
	}
	if atomic.LoadInt32(&notifier.wakes) != 1 {
		t.Fatalf("expected exactly one wake-up, got %d", notifier.wakes)
	}
}

func TestInstallRejectsNonFutureExpiry(t *testing.T) {
	store := New(false, nil, nil, nil)
	now := time.Unix(1_700_000_000, 0)

	cred := Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1", ExpiresAtUnixMs: now.UnixMilli()}
	err := store.Install(cred, now)
	if !errors.Is(err, apperrors.ErrCredentialExpired) {
		t.Fatalf("Install() error = %v, want ErrCredentialExpired", err)
	}

	if _, err := store.Snapshot(); !errors.Is(err, apperrors.ErrNoCredentialsAvailable) {
		t.Fatalf("Snapshot() after rejected install error = %v, want ErrNoCredentialsAvailable", err)
	}
}

func TestSnapshotBeforeInstallFails(t *testing.T) {
	store := New(false, nil, nil, nil)
	if _, err := store.Snapshot(); !errors.Is(err, apperrors.ErrNoCredentialsAvailable) {
		t.Fatalf("Snapshot() error = %v, want ErrNoCredentialsAvailable", err)
	}
}

func TestSnapshotSTSModeRequiresSessionToken(t *testing.T) {
	store := New(true, nil, nil, nil)
	now := time.Unix(1_700_000_000, 0)
	cred := Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1", ExpiresAtUnixMs: now.Add(time.Hour).UnixMilli()}

	if err := store.Install(cred, now); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if _, err := store.Snapshot(); !errors.Is(err, apperrors.ErrNoCredentialsAvailable) {
		t.Fatalf("Snapshot() in STS mode without session token error = %v, want ErrNoCredentialsAvailable", err)
	}

	cred.SessionToken = "token"
	if err := store.Install(cred, now); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if _, err := store.Snapshot(); err != nil {
		t.Fatalf("Snapshot() with session token error = %v", err)
	}
}

// Scenario 6 (spec.md §8): install with 1000ms remaining schedules +800ms;
// record_failure schedules +10000ms.
func TestRefreshScheduling(t *testing.T) {
	resched := &recordingRescheduler{}
	store := New(false, &recordingNotifier{}, nil, resched)

	now := time.Unix(1_700_000_000, 0)
	cred := Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1", ExpiresAtUnixMs: now.Add(1000 * time.Millisecond).UnixMilli()}

	if err := store.Install(cred, now); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if len(resched.scheduled) != 1 || resched.scheduled[0] != 800*time.Millisecond {
		t.Fatalf("ScheduleNext calls = %v, want [800ms]", resched.scheduled)
	}

	store.RecordFailure("boom")
	if len(resched.scheduled) != 2 || resched.scheduled[1] != 10*time.Second {
		t.Fatalf("ScheduleNext calls = %v, want [..., 10s]", resched.scheduled)
	}
}

func TestRecordFailureDebouncesIdenticalError(t *testing.T) {
	reporter := &recordingReporter{}
	store := New(false, nil, reporter, nil)

	store.RecordFailure("connection refused")
	store.RecordFailure("connection refused")
	store.RecordFailure("timeout")

	if len(reporter.events) != 2 {
		t.Fatalf("got %d error events, want 2 (repeat suppressed): %v", len(reporter.events), reporter.events)
	}
}

func TestRecordFailureLeavesCurrentCredentialUntouched(t *testing.T) {
	store := New(false, &recordingNotifier{}, nil, nil)
	now := time.Unix(1_700_000_000, 0)
	cred := Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1", ExpiresAtUnixMs: now.Add(time.Hour).UnixMilli()}

	if err := store.Install(cred, now); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	store.RecordFailure("sts unreachable")

	got, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got != cred {
		t.Fatalf("Snapshot() after RecordFailure = %+v, want untouched %+v", got, cred)
	}
}

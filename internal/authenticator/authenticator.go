// Package authenticator implements the per-connection AuthState state
// machine (spec.md §3/§4.H): each broker connection gets its own
// Authenticator that snapshots credentials from the store, builds the
// signed SASL payload, and interprets the broker's single response.
package authenticator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brightloop/mskiamauth/internal/apperrors"
	"github.com/brightloop/mskiamauth/internal/credstore"
	"github.com/brightloop/mskiamauth/internal/logging"
	"github.com/brightloop/mskiamauth/internal/metrics"
	"github.com/brightloop/mskiamauth/internal/saslpayload"
	"github.com/oklog/ulid/v2"
)

// state is the two-state machine from spec.md §3: initial sendFirst,
// terminal on either a response or an error.
type state int

const (
	stateSendFirst state = iota
	stateAwaitResponse
	stateDone
)

// CredentialSource is the subset of *credstore.Store an Authenticator
// depends on, so tests can drive it with a fake.
type CredentialSource interface {
	Snapshot() (credstore.Credential, error)
}

// Waiter suspends the caller until credentials become available or ctx
// is done. *notify.Signal satisfies this.
type Waiter interface {
	Wait(ctx context.Context) error
}

// ulid.Monotonic's entropy source is not safe for concurrent use, but
// many broker threads call New concurrently (spec.md §5), so access to
// the shared source idGen is serialized with idGenMu below.
var (
	idGenMu sync.Mutex
	idGen   = ulid.Monotonic(rand.Reader, 0)
)

func nextID() string {
	idGenMu.Lock()
	defer idGenMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idGen).String()
}

// Authenticator drives one connection's AWS_MSK_IAM SASL exchange. It is
// always destroyed after HandleResponse or a failed Begin (spec.md §4.H:
// "the state object is always destroyed").
type Authenticator struct {
	id       string
	hostname string
	store    CredentialSource
	waiter   Waiter
	metrics  *metrics.Collector
	log      logging.Logger

	state state
	snap  credstore.Credential
}

// New constructs an Authenticator for one connection attempt against
// hostname. waiter may be nil, in which case Begin fails immediately
// (rather than suspending) when no credential is yet installed.
func New(store CredentialSource, waiter Waiter, hostname string, mc *metrics.Collector) *Authenticator {
	id := nextID()
	return &Authenticator{
		id:       id,
		hostname: hostname,
		store:    store,
		waiter:   waiter,
		metrics:  mc,
		state:    stateSendFirst,
		log:      logging.For("authenticator"),
	}
}

// ID returns the ULID tagging this attempt, for correlating log lines
// across the SEND_FIRST/AWAIT_RESPONSE transition.
func (a *Authenticator) ID() string {
	return a.id
}

// Begin performs the SEND_FIRST step (spec.md §4.H): snapshot credentials
// (suspending on the waiter if none are installed yet), freeze them for
// the lifetime of this attempt, build the signed payload, and transition
// to AWAIT_RESPONSE. The returned bytes are the client's first SASL frame.
func (a *Authenticator) Begin(ctx context.Context) ([]byte, error) {
	if a.state != stateSendFirst {
		return nil, fmt.Errorf("authenticator %s: Begin called out of order", a.id)
	}

	snap, err := a.awaitSnapshot(ctx)
	if err != nil {
		a.finish(false)
		return nil, err
	}
	a.snap = snap

	identity := saslpayload.Identity{
		AccessKeyID:     snap.AccessKeyID,
		SecretAccessKey: snap.SecretAccessKey,
		Region:          snap.Region,
		SessionToken:    snap.SessionToken,
	}

	payload, err := saslpayload.Build(identity, a.hostname, time.Now())
	if err != nil {
		a.log.Error("authenticator %s: building SASL payload: %v", a.id, err)
		a.finish(false)
		return nil, err
	}

	a.state = stateAwaitResponse
	a.log.Debug("authenticator %s: sent first frame for host=%s", a.id, a.hostname)
	return payload, nil
}

// awaitSnapshot retries Snapshot until it succeeds, the waiter reports a
// context error, or the store reports something other than "no
// credentials yet" (which is not worth retrying).
func (a *Authenticator) awaitSnapshot(ctx context.Context) (credstore.Credential, error) {
	for {
		snap, err := a.store.Snapshot()
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, apperrors.ErrNoCredentialsAvailable) || a.waiter == nil {
			return credstore.Credential{}, err
		}
		if waitErr := a.waiter.Wait(ctx); waitErr != nil {
			return credstore.Credential{}, fmt.Errorf("%w: %v", apperrors.ErrNoCredentialsAvailable, waitErr)
		}
	}
}

// HandleResponse performs the AWAIT_RESPONSE step (spec.md §4.H): empty
// bytes mean the broker accepted the SASL exchange; non-empty bytes are
// the broker's rejection reason, surfaced as ErrAuthRejected.
func (a *Authenticator) HandleResponse(resp []byte) error {
	if a.state != stateAwaitResponse {
		return fmt.Errorf("authenticator %s: HandleResponse called out of order", a.id)
	}
	a.state = stateDone

	if len(resp) == 0 {
		a.log.Info("authenticator %s: authentication succeeded for host=%s", a.id, a.hostname)
		a.finish(true)
		return nil
	}

	a.log.Warn("authenticator %s: broker rejected authentication: %s", a.id, resp)
	a.finish(false)
	return fmt.Errorf("%w: %s", apperrors.ErrAuthRejected, resp)
}

func (a *Authenticator) finish(success bool) {
	a.state = stateDone
	if a.metrics != nil {
		a.metrics.RecordAuthAttempt(success)
	}
}

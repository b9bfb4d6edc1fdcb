// Package mskiamauth wires the signing engine, credential lifecycle
// manager, and per-connection authenticators described in spec.md into a
// single Client an AWS_MSK_IAM SASL transport can embed: one Client per
// broker fleet, one Authenticator per connection.
package mskiamauth

import (
	"context"
	"time"

	"github.com/brightloop/mskiamauth/internal/authenticator"
	"github.com/brightloop/mskiamauth/internal/config"
	"github.com/brightloop/mskiamauth/internal/credstore"
	"github.com/brightloop/mskiamauth/internal/logging"
	"github.com/brightloop/mskiamauth/internal/metrics"
	"github.com/brightloop/mskiamauth/internal/notify"
	"github.com/brightloop/mskiamauth/internal/refresh"
	"github.com/brightloop/mskiamauth/internal/sts"
)

// AuthError is the authentication-error event emitted to Client.Errors()
// when the store's last-error string changes (spec.md §6).
type AuthError struct {
	Time time.Time
	Text string
}

// Client is the "enclosing client instance" spec.md §3/§9 refers to: it
// owns the credential store, the refresh scheduler, and the channel
// Store.RecordFailure reports new errors on, and it implements
// credstore.Notifier so Store.Install can wake every Authenticator
// blocked waiting for the first credential.
type Client struct {
	store   *credstore.Store
	sched   *refresh.Scheduler
	signal  *notify.Signal
	metrics *metrics.Collector
	log     logging.Logger

	errCh chan AuthError
}

// New constructs a Client from configuration, validating it and
// constructing the refresh scheduler if STS mode is enabled (Start runs
// it; New does not). The caller must call Close when the client is no
// longer needed.
func New(cfg *config.Config, mc *metrics.Collector) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		signal:  notify.NewSignal(),
		metrics: mc,
		log:     logging.For("client"),
		errCh:   make(chan AuthError, 16),
	}

	c.store = credstore.New(cfg.AWS.EnableSTS, c, c, nil)

	if cfg.AWS.EnableSTS {
		stsClient, err := sts.NewClient(sts.Config{
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Region:          cfg.AWS.Region,
			RoleARN:         cfg.AWS.RoleARN,
			RoleSessionName: cfg.AWS.RoleSessionName,
			ExternalID:      cfg.AWS.ExternalID,
			DurationSec:     cfg.AWS.DurationSec,
		}, sts.TLSMaterial{
			ClientCert: cfg.TLS.ClientCert,
			ClientKey:  cfg.TLS.ClientKey,
			CABundle:   cfg.TLS.CABundle,
		}, mc)
		if err != nil {
			return nil, err
		}

		c.sched = refresh.New(true, cfg.AWS.Region, stsClient, c.store, mc)
		c.store.SetRescheduler(c.sched)
	} else {
		// Static credentials conceptually never expire (spec.md §3); the
		// far-future sentinel satisfies Install's "strictly in the future"
		// invariant even for a static session token with no STS-issued
		// expiration.
		cred := credstore.Credential{
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Region:          cfg.AWS.Region,
			SessionToken:    cfg.AWS.SessionToken,
			ExpiresAtUnixMs: credstore.NeverExpires,
		}
		if err := c.store.Install(cred, time.Now()); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Start begins the refresh scheduler (a no-op in static-credential mode).
func (c *Client) Start(ctx context.Context) {
	if c.sched != nil {
		c.sched.Start(ctx)
	}
}

// Close stops the refresh scheduler, waiting for any in-flight fire to
// complete (spec.md §5 shutdown).
func (c *Client) Close() {
	if c.sched != nil {
		c.sched.Stop()
	}
	close(c.errCh)
}

// NewAuthenticator returns a per-connection Authenticator (spec.md §4.H)
// authenticating against hostname. Each connection owns exactly one.
func (c *Client) NewAuthenticator(hostname string) *authenticator.Authenticator {
	return authenticator.New(c.store, c.signal, hostname, c.metrics)
}

// Errors returns the channel AuthError events are published on (spec.md
// §6). Callers should drain it; it is closed when Close is called.
func (c *Client) Errors() <-chan AuthError {
	return c.errCh
}

// WakeAll implements credstore.Notifier: it releases every Authenticator
// suspended in awaitSnapshot waiting on c.signal.
func (c *Client) WakeAll(reason string) {
	c.log.Debug("waking blocked connection workers: %s", reason)
	if c.metrics != nil {
		c.metrics.RecordStoreWakeup()
	}
	c.signal.Broadcast()
}

// ReportAuthError implements credstore.ErrorReporter: it publishes an
// AuthError event, dropping it rather than blocking if no one is
// listening and the buffer is full.
func (c *Client) ReportAuthError(text string) {
	select {
	case c.errCh <- AuthError{Time: time.Now(), Text: text}:
	default:
		c.log.Warn("error channel full, dropping authentication-error event: %s", text)
	}
}

package authenticator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brightloop/mskiamauth/internal/apperrors"
	"github.com/brightloop/mskiamauth/internal/credstore"
)

type fakeSource struct {
	mu   sync.Mutex
	cred credstore.Credential
	err  error
}

func (f *fakeSource) Snapshot() (credstore.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return credstore.Credential{}, f.err
	}
	return f.cred, nil
}

func (f *fakeSource) set(cred credstore.Credential) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = nil
	f.cred = cred
}

type fakeWaiter struct {
	released chan struct{}
}

func (w *fakeWaiter) Wait(ctx context.Context) error {
	select {
	case <-w.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestBeginSucceedsWithInstalledCredential(t *testing.T) {
	source := &fakeSource{cred: credstore.Credential{
		AccessKeyID:     "AWS_ACCESS_KEY_ID",
		SecretAccessKey: "AWS_SECRET_ACCESS_KEY",
		Region:          "us-east-1",
	}}
	a := New(source, nil, "hostname", nil)

	payload, err := a.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("Begin() returned empty payload")
	}
	if a.state != stateAwaitResponse {
		t.Fatalf("state = %v, want stateAwaitResponse", a.state)
	}
}

func TestBeginFailsWithoutWaiterWhenNoCredentials(t *testing.T) {
	source := &fakeSource{err: apperrors.ErrNoCredentialsAvailable}
	a := New(source, nil, "hostname", nil)

	if _, err := a.Begin(context.Background()); !errors.Is(err, apperrors.ErrNoCredentialsAvailable) {
		t.Fatalf("Begin() error = %v, want ErrNoCredentialsAvailable", err)
	}
	if a.state != stateDone {
		t.Fatalf("state = %v, want stateDone", a.state)
	}
}

func TestBeginWaitsThenSucceedsOnceCredentialsInstalled(t *testing.T) {
	source := &fakeSource{err: apperrors.ErrNoCredentialsAvailable}
	waiter := &fakeWaiter{released: make(chan struct{})}
	a := New(source, waiter, "hostname", nil)

	done := make(chan error, 1)
	go func() {
		_, err := a.Begin(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Begin() returned early with err=%v before credentials installed", err)
	case <-time.After(50 * time.Millisecond):
	}

	source.set(credstore.Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1"})
	close(waiter.released)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Begin() did not return after credentials were installed")
	}
}

func TestBeginCanceledByContext(t *testing.T) {
	source := &fakeSource{err: apperrors.ErrNoCredentialsAvailable}
	waiter := &fakeWaiter{released: make(chan struct{})}
	a := New(source, waiter, "hostname", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Begin(ctx)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, apperrors.ErrNoCredentialsAvailable) {
			t.Fatalf("Begin() error = %v, want wrapped ErrNoCredentialsAvailable", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Begin() did not return after context cancellation")
	}
}

func TestHandleResponseEmptyIsSuccess(t *testing.T) {
	source := &fakeSource{cred: credstore.Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1"}}
	a := New(source, nil, "hostname", nil)

	if _, err := a.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := a.HandleResponse(nil); err != nil {
		t.Fatalf("HandleResponse(nil) error = %v", err)
	}
	if a.state != stateDone {
		t.Fatalf("state = %v, want stateDone", a.state)
	}
}

func TestHandleResponseNonEmptyIsRejection(t *testing.T) {
	source := &fakeSource{cred: credstore.Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1"}}
	a := New(source, nil, "hostname", nil)

	if _, err := a.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	err := a.HandleResponse([]byte("not authorized"))
	if !errors.Is(err, apperrors.ErrAuthRejected) {
		t.Fatalf("HandleResponse() error = %v, want ErrAuthRejected", err)
	}
}

func TestHandleResponseOutOfOrder(t *testing.T) {
	source := &fakeSource{cred: credstore.Credential{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Region: "us-east-1"}}
	a := New(source, nil, "hostname", nil)

	if err := a.HandleResponse(nil); err == nil {
		t.Fatal("HandleResponse() before Begin() should error")
	}
}

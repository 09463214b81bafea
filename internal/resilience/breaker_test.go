package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bontonsw/grievbot/internal/complaints"
	"github.com/bontonsw/grievbot/internal/complaints/mock"
	"github.com/bontonsw/grievbot/internal/resilience"
)

var errBoom = errors.New("boom")

func failingBreaker(limit int, cooldown time.Duration) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		Name:         "test",
		FailureLimit: limit,
		Cooldown:     cooldown,
	})
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b := failingBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("Do() error = %v, want errBoom", err)
		}
	}
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	err := b.Do(func() error {
		t.Fatal("fn called while breaker open")
		return nil
	})
	if !errors.Is(err, resilience.ErrServiceUnavailable) {
		t.Fatalf("Do() while open = %v, want ErrServiceUnavailable", err)
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	t.Parallel()
	b := failingBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.Do(func() error { return errBoom })
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		b.Do(func() error { return errBoom })
	}
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("State() = %v, want closed after reset-by-success", got)
	}
}

func TestBreakerClosesAfterProbes(t *testing.T) {
	t.Parallel()
	b := resilience.NewBreaker(resilience.BreakerConfig{
		Name:         "test",
		FailureLimit: 1,
		Cooldown:     time.Millisecond,
		ProbeLimit:   2,
	})

	b.Do(func() error { return errBoom })
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d error = %v", i, err)
		}
	}
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("State() = %v, want closed after successful probes", got)
	}
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	t.Parallel()
	b := resilience.NewBreaker(resilience.BreakerConfig{
		Name:         "test",
		FailureLimit: 1,
		Cooldown:     time.Millisecond,
	})

	b.Do(func() error { return errBoom })
	time.Sleep(5 * time.Millisecond)
	b.Do(func() error { return errBoom })

	if err := b.Do(func() error { return nil }); !errors.Is(err, resilience.ErrServiceUnavailable) {
		t.Fatalf("Do() after failed probe = %v, want ErrServiceUnavailable", err)
	}
}

func TestClientIgnoresBusinessErrors(t *testing.T) {
	t.Parallel()
	inner := &mock.Client{FetchErr: complaints.ErrNotFound}
	c := resilience.NewClient(inner, resilience.BreakerConfig{FailureLimit: 2})

	for i := 0; i < 5; i++ {
		if _, err := c.FetchCustomer(context.Background(), "GHOST"); !errors.Is(err, complaints.ErrNotFound) {
			t.Fatalf("FetchCustomer() error = %v, want ErrNotFound", err)
		}
	}
	if got := c.State(); got != resilience.StateClosed {
		t.Fatalf("State() = %v, want closed — not-found must not trip the breaker", got)
	}
}

func TestClientTripsOnTransportErrors(t *testing.T) {
	t.Parallel()
	inner := &mock.Client{CategoriesErr: errBoom}
	c := resilience.NewClient(inner, resilience.BreakerConfig{
		FailureLimit: 2,
		Cooldown:     time.Minute,
	})

	for i := 0; i < 2; i++ {
		if _, err := c.ListIssueCategories(context.Background()); !errors.Is(err, errBoom) {
			t.Fatalf("ListIssueCategories() error = %v, want errBoom", err)
		}
	}

	_, err := c.ListIssueCategories(context.Background())
	if !errors.Is(err, resilience.ErrServiceUnavailable) {
		t.Fatalf("ListIssueCategories() while open = %v, want ErrServiceUnavailable", err)
	}
	if got := inner.CategoryCalls; got != 2 {
		t.Errorf("CategoryCalls = %d, want 2 — open breaker must not call through", got)
	}
}

func TestClientSharedAcrossOperations(t *testing.T) {
	t.Parallel()
	inner := &mock.Client{
		FetchErr:   errBoom,
		PendingErr: errBoom,
	}
	c := resilience.NewClient(inner, resilience.BreakerConfig{
		FailureLimit: 2,
		Cooldown:     time.Minute,
	})

	c.FetchCustomer(context.Background(), "BEN123")
	c.ListPendingComplaints(context.Background(), "BEN123")

	// Both failures count against the one breaker, so create is rejected
	// without reaching the service.
	_, err := c.CreateComplaint(context.Background(), complaints.NewComplaint{})
	if !errors.Is(err, resilience.ErrServiceUnavailable) {
		t.Fatalf("CreateComplaint() = %v, want ErrServiceUnavailable", err)
	}
	if len(inner.CreateCalls) != 0 {
		t.Errorf("CreateCalls = %d, want 0", len(inner.CreateCalls))
	}
}

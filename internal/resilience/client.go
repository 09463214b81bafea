package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/bontonsw/grievbot/internal/complaints"
)

// Client wraps a [complaints.Client] with a shared [Breaker]. Business
// outcomes — unknown customer, rejected payload — are not failures; only
// transport-level errors count toward tripping the breaker.
type Client struct {
	inner   complaints.Client
	breaker *Breaker
}

// Compile-time interface check.
var _ complaints.Client = (*Client)(nil)

// NewClient wraps inner. A zero cfg gets the [Breaker] defaults; the failure
// classifier is always the transport-error rule regardless of cfg.IsFailure.
func NewClient(inner complaints.Client, cfg BreakerConfig) *Client {
	if cfg.Name == "" {
		cfg.Name = "complaint-service"
	}
	cfg.IsFailure = isTransportFailure
	return &Client{
		inner:   inner,
		breaker: NewBreaker(cfg),
	}
}

// isTransportFailure reports whether err indicates the service itself is
// unhealthy. NotFound and validation responses prove the service answered.
func isTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, complaints.ErrNotFound) || errors.Is(err, complaints.ErrValidation) {
		return false
	}
	return true
}

// State exposes the underlying breaker state.
func (c *Client) State() State {
	return c.breaker.State()
}

// FetchCustomer implements [complaints.Client].
func (c *Client) FetchCustomer(ctx context.Context, beneficiaryNo string) (complaints.Customer, error) {
	var cust complaints.Customer
	err := c.breaker.Do(func() error {
		var err error
		cust, err = c.inner.FetchCustomer(ctx, beneficiaryNo)
		return err
	})
	if errors.Is(err, ErrServiceUnavailable) {
		return complaints.Customer{}, fmt.Errorf("resilience: fetch customer: %w", err)
	}
	return cust, err
}

// ListPendingComplaints implements [complaints.Client].
func (c *Client) ListPendingComplaints(ctx context.Context, beneficiaryNo string) (complaints.PendingList, error) {
	var list complaints.PendingList
	err := c.breaker.Do(func() error {
		var err error
		list, err = c.inner.ListPendingComplaints(ctx, beneficiaryNo)
		return err
	})
	if errors.Is(err, ErrServiceUnavailable) {
		return complaints.PendingList{}, fmt.Errorf("resilience: pending complaints: %w", err)
	}
	return list, err
}

// ListIssueCategories implements [complaints.Client].
func (c *Client) ListIssueCategories(ctx context.Context) ([]string, error) {
	var labels []string
	err := c.breaker.Do(func() error {
		var err error
		labels, err = c.inner.ListIssueCategories(ctx)
		return err
	})
	if errors.Is(err, ErrServiceUnavailable) {
		return nil, fmt.Errorf("resilience: issue categories: %w", err)
	}
	return labels, err
}

// CreateComplaint implements [complaints.Client].
func (c *Client) CreateComplaint(ctx context.Context, nc complaints.NewComplaint) (complaints.Receipt, error) {
	var rec complaints.Receipt
	err := c.breaker.Do(func() error {
		var err error
		rec, err = c.inner.CreateComplaint(ctx, nc)
		return err
	})
	if errors.Is(err, ErrServiceUnavailable) {
		return complaints.Receipt{}, fmt.Errorf("resilience: create complaint: %w", err)
	}
	return rec, err
}

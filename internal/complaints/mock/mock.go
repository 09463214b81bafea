// Package mock provides a recording test double for the complaints.Client
// interface.
//
// Configure canned results via the struct fields, then inspect the recorded
// call slices to assert how the dialogue engine drove the service:
//
//	client := &mock.Client{
//	    Customer:   complaints.Customer{Name: "Asha", MeterID: "MTR-9"},
//	    Categories: []string{"Power failure", "Others"},
//	}
//	// ... run the engine ...
//	if len(client.CreateCalls) != 1 { ... }
package mock

import (
	"context"
	"sync"

	"github.com/bontonsw/grievbot/internal/complaints"
)

// Client is a mock implementation of [complaints.Client].
type Client struct {
	mu sync.Mutex

	// Customer is returned by FetchCustomer when FetchErr is nil.
	Customer complaints.Customer

	// FetchErr, if non-nil, is returned from FetchCustomer.
	FetchErr error

	// Pending is returned by ListPendingComplaints when PendingErr is nil.
	Pending complaints.PendingList

	// PendingErr, if non-nil, is returned from ListPendingComplaints.
	PendingErr error

	// Categories is returned by ListIssueCategories when CategoriesErr is nil.
	Categories []string

	// CategoriesErr, if non-nil, is returned from ListIssueCategories.
	CategoriesErr error

	// Receipt is returned by CreateComplaint when CreateErr is nil.
	Receipt complaints.Receipt

	// CreateErr, if non-nil, is returned from CreateComplaint.
	CreateErr error

	// FetchCalls records the beneficiary numbers passed to FetchCustomer.
	FetchCalls []string

	// PendingCalls records the beneficiary numbers passed to ListPendingComplaints.
	PendingCalls []string

	// CategoryCalls counts ListIssueCategories invocations.
	CategoryCalls int

	// CreateCalls records every payload passed to CreateComplaint.
	CreateCalls []complaints.NewComplaint
}

// Compile-time interface check.
var _ complaints.Client = (*Client)(nil)

// FetchCustomer records the call and returns Customer, FetchErr.
func (c *Client) FetchCustomer(_ context.Context, beneficiaryNo string) (complaints.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FetchCalls = append(c.FetchCalls, beneficiaryNo)
	if c.FetchErr != nil {
		return complaints.Customer{}, c.FetchErr
	}
	cust := c.Customer
	if cust.BeneficiaryNo == "" {
		cust.BeneficiaryNo = beneficiaryNo
	}
	return cust, nil
}

// ListPendingComplaints records the call and returns Pending, PendingErr.
func (c *Client) ListPendingComplaints(_ context.Context, beneficiaryNo string) (complaints.PendingList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PendingCalls = append(c.PendingCalls, beneficiaryNo)
	if c.PendingErr != nil {
		return complaints.PendingList{}, c.PendingErr
	}
	return c.Pending, nil
}

// ListIssueCategories records the call and returns Categories, CategoriesErr.
func (c *Client) ListIssueCategories(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CategoryCalls++
	if c.CategoriesErr != nil {
		return nil, c.CategoriesErr
	}
	out := make([]string, len(c.Categories))
	copy(out, c.Categories)
	return out, nil
}

// CreateComplaint records the payload and returns Receipt, CreateErr.
func (c *Client) CreateComplaint(_ context.Context, nc complaints.NewComplaint) (complaints.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreateCalls = append(c.CreateCalls, nc)
	if c.CreateErr != nil {
		return complaints.Receipt{}, c.CreateErr
	}
	rec := c.Receipt
	if rec.ComplaintID == "" {
		rec.ComplaintID = "CMP-TEST01"
	}
	return rec, nil
}

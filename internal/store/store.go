// Package store persists customers and complaints for the built-in
// complaint-management service.
//
// Two implementations exist: [PostgresStore] for deployments with a
// database.postgres_dsn, and [MemoryStore] as the zero-setup fallback.
package store

import (
	"context"
	"crypto/rand"
	"time"
)

// Complaint status values. Pending listings return everything that is not
// resolved.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

// CustomerRecord is a persisted customer.
type CustomerRecord struct {
	BeneficiaryNo string
	Name          string
	Phone         string
	MeterID       string
	AccountNumber string
	CustomerType  string
}

// ComplaintRecord is a persisted complaint.
type ComplaintRecord struct {
	ComplaintID          string
	BeneficiaryNo        string
	IssueType            string
	ComplaintType        string
	CustomDescription    string
	Status               string
	CreatedAt            time.Time
	EstimatedRestoration string
	ResolutionNote       string
}

// Store provides persistence for the complaint service.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetCustomer retrieves a customer by beneficiary number, matched
	// case-insensitively. Returns (nil, nil) if not found.
	GetCustomer(ctx context.Context, beneficiaryNo string) (*CustomerRecord, error)

	// UpsertCustomer creates or replaces a customer record.
	UpsertCustomer(ctx context.Context, c *CustomerRecord) error

	// CreateComplaint inserts a new complaint. Returns an error if the
	// complaint ID already exists.
	CreateComplaint(ctx context.Context, rec *ComplaintRecord) error

	// GetComplaint retrieves a complaint by ID. Returns (nil, nil) if
	// not found.
	GetComplaint(ctx context.Context, complaintID string) (*ComplaintRecord, error)

	// ListPending returns the customer's unresolved complaints, oldest
	// first.
	ListPending(ctx context.Context, beneficiaryNo string) ([]ComplaintRecord, error)

	// CloseComplaint marks a complaint resolved, records the resolution
	// note, and returns the updated record. Returns (nil, nil) if no
	// complaint with the ID exists.
	CloseComplaint(ctx context.Context, complaintID, resolutionNote string) (*ComplaintRecord, error)
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewComplaintID returns a fresh complaint identifier of the form
// "CMP-XXXXXX" with six characters from [A-Z0-9].
func NewComplaintID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("store: rand.Read: " + err.Error())
	}
	id := make([]byte, 0, 10)
	id = append(id, "CMP-"...)
	for _, c := range b {
		id = append(id, idAlphabet[int(c)%len(idAlphabet)])
	}
	return string(id)
}

// Package complaints defines the contract between the dialogue engine and
// the complaint-management service: the four operations the engine consumes,
// their data shapes, and the error kinds callers are expected to branch on.
//
// The engine only ever depends on the [Client] interface. The production
// implementation is [HTTPClient]; tests use the recording double in the
// mock subpackage.
package complaints

import (
	"context"
	"errors"
)

// Channel identifies which interaction surface filed a complaint.
type Channel string

const (
	ChannelText  Channel = "text"
	ChannelVoice Channel = "voice"
)

// ErrNotFound is returned when a customer or complaint lookup has no match.
// Recoverable: the engine re-prompts for a valid identifier.
var ErrNotFound = errors.New("complaints: not found")

// ErrValidation is returned when the service rejects a malformed submission.
var ErrValidation = errors.New("complaints: invalid submission")

// Customer is the service's snapshot of a customer record, resolved once per
// session from the user-supplied beneficiary number and immutable afterwards.
type Customer struct {
	BeneficiaryNo string `json:"beneficiary_no"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	MeterID       string `json:"meter_id"`
	AccountNumber string `json:"account_number"`
	CustomerType  string `json:"customer_type"`
}

// PendingComplaint is one open complaint in a pending-complaints listing.
type PendingComplaint struct {
	ComplaintID              string `json:"complaint_id"`
	IssueType                string `json:"issue_type"`
	Status                   string `json:"status"`
	CreatedAt                string `json:"created_at"`
	EstimatedRestorationTime string `json:"estimated_restoration_time,omitempty"`
}

// PendingList is the result of listing a customer's open complaints.
// An empty Items slice is a valid, non-error result.
type PendingList struct {
	Items       []PendingComplaint `json:"pending_complaints"`
	SummaryText string             `json:"summary_text"`
}

// NewComplaint is the payload for filing a complaint.
type NewComplaint struct {
	BeneficiaryNo     string  `json:"beneficiary_no"`
	IssueType         string  `json:"issue_type"`
	Channel           Channel `json:"complaint_type"`
	CustomDescription string  `json:"custom_issue_description,omitempty"`

	// Customer details are forwarded so the service can register customers
	// it has not seen before, mirroring the text channel's behaviour.
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	MeterID       string `json:"meter_id,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	CustomerType  string `json:"customer_type,omitempty"`
}

// Receipt acknowledges a filed complaint.
type Receipt struct {
	ComplaintID string `json:"complaint_id"`
}

// Client is the complaint-service operations the dialogue engine consumes.
//
// All methods honour ctx cancellation and deadlines. Retries and timeouts
// are the implementation's concern — the engine never retries on its own.
// Implementations must be safe for concurrent use.
type Client interface {
	// FetchCustomer resolves a beneficiary number to a customer snapshot.
	// Returns an error wrapping [ErrNotFound] when no customer matches.
	FetchCustomer(ctx context.Context, beneficiaryNo string) (Customer, error)

	// ListPendingComplaints returns the customer's open complaints and a
	// pre-built human-readable summary.
	ListPendingComplaints(ctx context.Context, beneficiaryNo string) (PendingList, error)

	// ListIssueCategories returns the issue category labels the service
	// accepts. The list always includes the "Others" fallback entry.
	ListIssueCategories(ctx context.Context) ([]string, error)

	// CreateComplaint files a new complaint and returns its receipt.
	// Returns an error wrapping [ErrValidation] on a malformed payload.
	CreateComplaint(ctx context.Context, nc NewComplaint) (Receipt, error)
}

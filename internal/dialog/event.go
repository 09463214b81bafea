package dialog

import "github.com/bontonsw/grievbot/internal/complaints"

// State is the machine-visible portion of a session. It is a value: the
// engine snapshots it, runs transitions on the copy, and commits the result
// only when a submission settles.
type State struct {
	// Channel is the interaction surface this session belongs to.
	Channel complaints.Channel

	// Step is the current protocol position.
	Step Step

	// BeneficiaryNo is the identifier resolved from the first user input.
	// Set once, immutable after.
	BeneficiaryNo string

	// Customer is the service snapshot captured at resolution time. Non-nil
	// for every step past StepIdentify.
	Customer *complaints.Customer

	// IssueOptions is the offered category list, refreshed on each register
	// transition and stable until the next one. The fallback category is
	// never offered.
	IssueOptions []string

	// SelectedIssue is the category chosen in the current register flow.
	SelectedIssue string

	// PendingDescription is the free-text description accompanying a
	// fallback issue, empty otherwise.
	PendingDescription string
}

// Event is an input to [Transition]: either a user utterance or the settled
// result of a previously declared effect.
type Event interface{ isEvent() }

// Utterance is a user input: raw typed text, a speech transcript, or a
// dropdown selection on the text channel.
type Utterance struct {
	// Raw is the user's input before normalization.
	Raw string

	// Selection marks a direct UI selection (dropdown value). Selections
	// skip classification and fuzzy matching.
	Selection bool
}

// CustomerResolved reports a successful FetchCustomer effect.
type CustomerResolved struct {
	Customer complaints.Customer
}

// LookupFailed reports a FetchCustomer effect that found no customer.
type LookupFailed struct{}

// PendingListed reports a successful ListPendingComplaints effect.
type PendingListed struct {
	List complaints.PendingList
}

// CategoriesListed reports a successful ListIssueCategories effect.
type CategoriesListed struct {
	Labels []string
}

// ComplaintFiled reports a successful CreateComplaint effect.
type ComplaintFiled struct {
	Receipt complaints.Receipt
}

// ServiceFailed reports an effect that failed for a reason other than a
// definitive lookup miss: network errors, timeouts, non-2xx responses.
type ServiceFailed struct {
	// Op names the failed operation: "fetch", "pending", "categories",
	// or "create".
	Op string
}

func (Utterance) isEvent()        {}
func (CustomerResolved) isEvent() {}
func (LookupFailed) isEvent()     {}
func (PendingListed) isEvent()    {}
func (CategoriesListed) isEvent() {}
func (ComplaintFiled) isEvent()   {}
func (ServiceFailed) isEvent()    {}

// Effect is a complaint-service call declared by [Transition]. The engine
// executes it and feeds the settled result back in as an [Event]. A single
// transition declares at most one effect.
type Effect interface{ isEffect() }

// FetchCustomerEffect resolves a beneficiary number.
type FetchCustomerEffect struct {
	BeneficiaryNo string
}

// ListPendingEffect lists the customer's open complaints.
type ListPendingEffect struct {
	BeneficiaryNo string
}

// ListCategoriesEffect fetches the issue category list.
type ListCategoriesEffect struct{}

// CreateComplaintEffect files a new complaint.
type CreateComplaintEffect struct {
	Payload complaints.NewComplaint
}

func (FetchCustomerEffect) isEffect()   {}
func (ListPendingEffect) isEffect()     {}
func (ListCategoriesEffect) isEffect()  {}
func (CreateComplaintEffect) isEffect() {}

// Outcome is the result of one [Transition] call. User and Bot entries are
// appended to the transcript (user first) when the submission settles.
type Outcome struct {
	// State is the post-transition state. On failures it preserves the
	// pre-event step so the user can retry.
	State State

	// User is transcript text to append with OriginUser.
	User []string

	// Bot is transcript text to append with OriginBot.
	Bot []string

	// Effect is the service call to execute, or nil.
	Effect Effect
}

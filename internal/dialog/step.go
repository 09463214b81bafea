// Package dialog implements the conversation state machine that drives the
// grievance-intake protocol for both the text and voice channels.
//
// The package separates the machine from its plumbing:
//
//   - [Transition] is a pure function (state, event) → (state, messages,
//     effect). Complaint-service calls appear as declared [Effect] values,
//     never as inline calls, so every branch is testable without a network
//     or a UI harness.
//
//   - [Engine] owns a session: it serializes incoming utterances through a
//     single worker goroutine, executes effects against a
//     [complaints.Client], feeds the settled results back into the machine,
//     and commits state plus transcript only once a submission has fully
//     settled. Two rapid inputs can therefore never observe the same
//     pre-call state or duplicate a service call.
//
// All user-visible failures are converted into bot messages; nothing in this
// package escalates a service error past the Submit boundary.
package dialog

// Step is a position in the intake protocol. The step set is shared by both
// channels; StepModeSelect is only reachable on the text channel.
type Step string

const (
	// StepStart is the initial step before the greeting has been emitted.
	StepStart Step = "start"

	// StepIdentify awaits the customer's beneficiary number.
	StepIdentify Step = "identify"

	// StepModeSelect awaits the text-channel choice between text and call.
	StepModeSelect Step = "mode_select"

	// StepActionSelect awaits the choice between viewing pending
	// complaints and registering a new one.
	StepActionSelect Step = "action_select"

	// StepAwaitIssue awaits an issue utterance (voice) or a dropdown
	// selection (text).
	StepAwaitIssue Step = "await_issue"

	// StepAwaitContinue awaits the choice between registering another
	// complaint and ending the session.
	StepAwaitContinue Step = "await_continue"

	// StepDone is terminal.
	StepDone Step = "done"
)

// String implements fmt.Stringer for logging.
func (s Step) String() string { return string(s) }

// Origin identifies who produced a transcript entry.
type Origin string

const (
	OriginBot  Origin = "bot"
	OriginUser Origin = "user"
)

// Message is one transcript entry. The transcript is append-only and its
// order is the conversation order; renderers must not reorder it.
type Message struct {
	Origin Origin `json:"origin"`
	Text   string `json:"text"`
}

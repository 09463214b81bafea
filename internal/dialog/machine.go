package dialog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bontonsw/grievbot/internal/complaints"
	"github.com/bontonsw/grievbot/internal/nlu"
)

// Bot message templates. The channel adapters render these verbatim, so the
// wording here is the product's voice.
const (
	msgGreeting          = "👋 Hi, please provide your Beneficiary Number to proceed."
	msgHelloFmt          = "👋 Hello %s, your Meter ID is %s."
	msgModePrompt        = "Would you prefer to continue via Text or Call?"
	msgActionPromptText  = "Would you like to:\n1. View previous complaints\n2. Register new complaint?"
	msgActionPromptVoice = "Would you like to:\n✔ say 'view complaints'\n✔ or say 'register' to raise a new one."
	msgCallWait          = "📞 Initiating a call. Please wait..."
	msgCallDone          = "✅ Our representative is calling you shortly. Thank you!"
	msgNotFound          = "❌ Customer not found. Please enter a valid Beneficiary Number."
	msgPendingSummary    = "📄 *Pending Complaint Summary:*\n\n%s"
	msgSMSSent           = "📩 SMS has been sent to your registered number."
	msgNoPending         = "✅ You have no pending complaints."
	msgIssuePromptFmt    = "📝 Please say the issue (e.g., one of the following):\n%s"
	msgIssueSelectText   = "📝 Please select the issue from the dropdown below."
	msgIssueRetry        = "❌ Could not understand the issue. Please try again."
	msgCustomIssueNote   = "📝 Couldn't match exactly. Registered your description as a custom issue."
	msgFiledFmt          = "✅ Complaint registered successfully! Complaint ID: %s"
	msgResolutionUpdate  = "📩 You will receive a resolution update via SMS."
	msgContinuePrompt    = "🔄 Would you like to continue?\n✔ Say 'register' to file a new complaint\n✔ Or say 'exit' to end the session."
	msgGoodbye           = "👋 Thank you. Session ended."
	msgSessionOver       = "Session has ended. Start a new session to continue."
	msgUnrecognizedFmt   = "⚠️ Unrecognized response: %q. %s"
	msgServiceErrFetch   = "❌ Could not process your response. Please try again..."
	msgServiceErrList    = "❌ Error fetching complaints."
	msgServiceErrCreate  = "❌ Failed to register complaint."
)

// Rules is the injectable classification policy consumed by [Transition].
type Rules struct {
	Intents *nlu.IntentClassifier
	Issues  *nlu.IssueMatcher
}

// DefaultRules returns Rules built from the default intent table and
// matcher configuration.
func DefaultRules() Rules {
	return Rules{
		Intents: nlu.NewIntentClassifier(nlu.DefaultIntentTable()),
		Issues:  nlu.NewIssueMatcher(nlu.MatcherConfig{}),
	}
}

// Transition computes the next state, transcript additions, and at most one
// service-call effect for one event. It is pure: no I/O, no mutation of st,
// deterministic for a given (st, ev, rules).
//
// Unrecognized input and failure events self-loop: they emit a clarification
// or error message and keep the pre-event step, so the user can retry.
func Transition(st State, ev Event, rules Rules) Outcome {
	switch e := ev.(type) {
	case Utterance:
		return onUtterance(st, e, rules)
	case CustomerResolved:
		return onCustomerResolved(st, e)
	case LookupFailed:
		return Outcome{State: st, Bot: []string{msgNotFound}}
	case PendingListed:
		return onPendingListed(st, e)
	case CategoriesListed:
		return onCategoriesListed(st, e)
	case ComplaintFiled:
		return onComplaintFiled(st, e)
	case ServiceFailed:
		return Outcome{State: st, Bot: []string{serviceErrMessage(e.Op)}}
	default:
		return Outcome{State: st}
	}
}

func onUtterance(st State, u Utterance, rules Rules) Outcome {
	norm := nlu.Normalize(u.Raw)

	switch st.Step {
	case StepStart, StepIdentify:
		return identify(st, u, norm)
	case StepModeSelect:
		return selectMode(st, u, norm)
	case StepActionSelect:
		return selectAction(st, u, norm, rules)
	case StepAwaitIssue:
		return captureIssue(st, u, rules)
	case StepAwaitContinue:
		return continueOrExit(st, u, norm, rules)
	case StepDone:
		return Outcome{State: st, Bot: []string{msgSessionOver}}
	default:
		return Outcome{State: st, Bot: []string{msgSessionOver}}
	}
}

// identify consumes the beneficiary number and declares the customer fetch.
// The step does not advance here — only the resolved event moves it.
func identify(st State, u Utterance, norm string) Outcome {
	out := Outcome{State: st}
	out.User = echo(st, u.Raw)
	if norm == "" {
		out.Bot = []string{msgGreeting}
		return out
	}

	id := norm
	if st.Channel == complaints.ChannelVoice {
		// Spoken digits arrive space-separated; the service matches
		// identifiers case-insensitively on the compacted form.
		id = strings.ReplaceAll(norm, " ", "")
	} else {
		id = strings.TrimSpace(u.Raw)
	}
	out.Effect = FetchCustomerEffect{BeneficiaryNo: id}
	return out
}

func selectMode(st State, u Utterance, norm string) Outcome {
	out := Outcome{State: st}
	out.User = echo(st, u.Raw)

	switch norm {
	case "text", "chat", "message", "1", "one":
		out.State.Step = StepActionSelect
		out.Bot = []string{msgActionPromptText}
	case "call", "phone", "2", "two":
		out.State.Step = StepDone
		out.Bot = []string{msgCallWait, msgCallDone}
	default:
		out.Bot = []string{fmt.Sprintf(msgUnrecognizedFmt, norm, "Please reply with Text or Call.")}
	}
	return out
}

func selectAction(st State, u Utterance, norm string, rules Rules) Outcome {
	out := Outcome{State: st}
	out.User = echo(st, u.Raw)

	// The text menu numbers its options; honour the literals before the
	// intent table, whose "1"/"2" synonyms belong to continue/exit.
	switch norm {
	case "1", "one":
		out.Effect = ListPendingEffect{BeneficiaryNo: st.BeneficiaryNo}
		return out
	case "2", "two":
		out.Effect = ListCategoriesEffect{}
		return out
	}

	switch intent, ok := rules.Intents.Classify(norm); {
	case ok && intent == nlu.IntentView:
		out.Effect = ListPendingEffect{BeneficiaryNo: st.BeneficiaryNo}
	case ok && intent == nlu.IntentRegister:
		out.Effect = ListCategoriesEffect{}
	default:
		out.Bot = []string{fmt.Sprintf(msgUnrecognizedFmt, norm, "Please say 'view complaints' or 'register'.")}
	}
	return out
}

func captureIssue(st State, u Utterance, rules Rules) Outcome {
	out := Outcome{State: st}

	if u.Selection {
		// Text channel dropdown: the value is a category verbatim, no
		// fuzzy matching involved. A value outside the offered list only
		// comes from a tampered or stale client; hold position.
		if !slices.Contains(st.IssueOptions, u.Raw) {
			out.Bot = []string{msgIssueRetry}
			return out
		}
		out.User = []string{u.Raw}
		out.State.SelectedIssue = u.Raw
		out.State.PendingDescription = ""
		out.Effect = CreateComplaintEffect{Payload: newComplaintPayload(out.State, u.Raw, "")}
		return out
	}

	res := rules.Issues.Match(u.Raw, st.IssueOptions)
	if res.Fallback && res.CustomDescription == "" {
		// Never file an empty free-text complaint; hold position.
		out.Bot = []string{msgIssueRetry}
		return out
	}

	if res.Fallback {
		out.User = []string{msgCustomIssueNote}
	} else {
		out.User = []string{res.Category}
	}
	out.State.SelectedIssue = res.Category
	out.State.PendingDescription = res.CustomDescription
	out.Effect = CreateComplaintEffect{Payload: newComplaintPayload(out.State, res.Category, res.CustomDescription)}
	return out
}

func continueOrExit(st State, u Utterance, norm string, rules Rules) Outcome {
	out := Outcome{State: st}
	out.User = echo(st, u.Raw)

	intent, ok := rules.Intents.Classify(norm)
	if !ok {
		out.Bot = []string{fmt.Sprintf(msgUnrecognizedFmt, norm, "Please say something like 'register' or 'exit'.")}
		return out
	}

	switch intent {
	case nlu.IntentRegister:
		out.Effect = ListCategoriesEffect{}
	case nlu.IntentExit:
		out.State.Step = StepDone
		out.Bot = []string{msgGoodbye}
	default:
		out.Bot = []string{fmt.Sprintf(msgUnrecognizedFmt, norm, "Please say something like 'register' or 'exit'.")}
	}
	return out
}

func onCustomerResolved(st State, e CustomerResolved) Outcome {
	cust := e.Customer
	out := Outcome{State: st}
	out.State.Customer = &cust
	out.State.BeneficiaryNo = cust.BeneficiaryNo

	if st.Channel == complaints.ChannelVoice {
		// The voice channel echoes the matched identifier instead of the
		// raw transcript, which may be garbled.
		out.User = []string{cust.BeneficiaryNo}
		out.State.Step = StepActionSelect
		out.Bot = []string{
			fmt.Sprintf(msgHelloFmt, cust.Name, cust.MeterID),
			msgActionPromptVoice,
		}
		return out
	}

	out.State.Step = StepModeSelect
	out.Bot = []string{
		fmt.Sprintf(msgHelloFmt, cust.Name, cust.MeterID),
		msgModePrompt,
	}
	return out
}

func onPendingListed(st State, e PendingListed) Outcome {
	out := Outcome{State: st}
	out.State.Step = StepAwaitContinue

	if len(e.List.Items) > 0 {
		summary := e.List.SummaryText
		if summary == "" {
			summary = fmt.Sprintf("You have %d pending complaint(s).", len(e.List.Items))
		}
		out.Bot = []string{fmt.Sprintf(msgPendingSummary, summary), msgSMSSent}
	} else {
		out.Bot = []string{msgNoPending}
	}
	out.Bot = append(out.Bot, msgContinuePrompt)
	return out
}

func onCategoriesListed(st State, e CategoriesListed) Outcome {
	out := Outcome{State: st}
	options := offeredCategories(e.Labels)
	out.State.IssueOptions = options
	out.State.SelectedIssue = ""
	out.State.PendingDescription = ""
	out.State.Step = StepAwaitIssue

	if st.Channel == complaints.ChannelText {
		out.Bot = []string{msgIssueSelectText}
		return out
	}

	var b strings.Builder
	for i, opt := range options {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(opt)
	}
	out.Bot = []string{fmt.Sprintf(msgIssuePromptFmt, b.String())}
	return out
}

func onComplaintFiled(st State, e ComplaintFiled) Outcome {
	out := Outcome{State: st}
	out.State.Step = StepAwaitContinue
	out.State.PendingDescription = ""
	out.Bot = []string{
		fmt.Sprintf(msgFiledFmt, e.Receipt.ComplaintID),
		msgResolutionUpdate,
		msgContinuePrompt,
	}
	return out
}

// echo returns the user transcript entry for a raw utterance. The text
// channel echoes every input; the voice channel suppresses the raw
// transcript during identification and issue capture, where a cleaned-up
// echo is produced by the settle instead.
func echo(st State, raw string) []string {
	if st.Channel == complaints.ChannelVoice {
		switch st.Step {
		case StepStart, StepIdentify, StepAwaitIssue:
			return nil
		}
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return []string{raw}
}

// newComplaintPayload builds the CreateComplaint payload from session state.
// The customer snapshot is forwarded so the service can register customers
// it has not seen before.
func newComplaintPayload(st State, issueType, customDescription string) complaints.NewComplaint {
	nc := complaints.NewComplaint{
		BeneficiaryNo:     st.BeneficiaryNo,
		IssueType:         issueType,
		Channel:           st.Channel,
		CustomDescription: customDescription,
	}
	if st.Customer != nil {
		nc.Name = st.Customer.Name
		nc.Phone = st.Customer.Phone
		nc.MeterID = st.Customer.MeterID
		nc.AccountNumber = st.Customer.AccountNumber
		nc.CustomerType = st.Customer.CustomerType
	}
	return nc
}

// offeredCategories dedupes labels case-insensitively (first occurrence
// wins) and drops the fallback category from the offered list.
func offeredCategories(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		lowered := strings.ToLower(strings.TrimSpace(l))
		if lowered == "" || lowered == strings.ToLower(nlu.FallbackCategory) {
			continue
		}
		if _, dup := seen[lowered]; dup {
			continue
		}
		seen[lowered] = struct{}{}
		out = append(out, strings.TrimSpace(l))
	}
	return out
}

func serviceErrMessage(op string) string {
	switch op {
	case "pending":
		return msgServiceErrList
	case "create":
		return msgServiceErrCreate
	default:
		return msgServiceErrFetch
	}
}

package nlu

import "strings"

// Intent is one of the closed set of user goals the bot understands.
type Intent string

const (
	IntentView     Intent = "view"
	IntentRegister Intent = "register"
	IntentContinue Intent = "continue"
	IntentExit     Intent = "exit"
)

// IntentEntry pairs an intent with its recognised synonym phrases.
// Synonyms are stored space-free and lowercase so they can be compared
// against the token-joined form of a normalized utterance.
type IntentEntry struct {
	Intent   Intent
	Synonyms []string
}

// DefaultIntentTable returns the built-in synonym table. Slice order is the
// classification priority: when an utterance matches synonyms of more than
// one intent, the earliest entry wins. "view" outranks "register" so that
// "view complaints" is never swallowed by the bare "complaint" synonym.
func DefaultIntentTable() []IntentEntry {
	return []IntentEntry{
		{Intent: IntentView, Synonyms: []string{
			"view", "viewcomplaints", "viewcomplaint", "check",
			"checkcomplaints", "seecomplaints", "oldcomplaints",
			"previouscomplaints", "pastcomplaints",
		}},
		{Intent: IntentRegister, Synonyms: []string{
			"register", "raisecomplaint", "filecomplaint", "newcomplaint",
			"logcomplaint", "submit", "complaint",
		}},
		{Intent: IntentContinue, Synonyms: []string{
			"1", "one", "optionone", "first", "yes", "continue", "ok", "go",
		}},
		{Intent: IntentExit, Synonyms: []string{
			"2", "two", "optiontwo", "second", "no", "exit", "stop",
			"quit", "end", "cancel",
		}},
	}
}

// OverrideSynonyms returns a copy of table where every intent present in
// overrides with a non-empty phrase list has its synonyms replaced by that
// list. Phrases are normalized and joined space-free, so configuration can
// say "my bills" and still match the token-joined utterance form. Priority
// order is table order and is never changed by an override.
func OverrideSynonyms(table []IntentEntry, overrides map[Intent][]string) []IntentEntry {
	out := make([]IntentEntry, len(table))
	copy(out, table)
	for i, entry := range out {
		phrases, ok := overrides[entry.Intent]
		if !ok || len(phrases) == 0 {
			continue
		}
		syns := make([]string, 0, len(phrases))
		for _, p := range phrases {
			if s := strings.Join(strings.Fields(Normalize(p)), ""); s != "" {
				syns = append(syns, s)
			}
		}
		if len(syns) > 0 {
			out[i].Synonyms = syns
		}
	}
	return out
}

// IntentClassifier maps normalized utterances to intents using substring
// containment in both directions, which tolerates partial or garbled
// speech-to-text output ("regist" matches "register", and "registering a
// complaint" matches too).
//
// A zero-synonym or nil table matches nothing. The classifier is read-only
// after construction and safe for concurrent use.
type IntentClassifier struct {
	table []IntentEntry
}

// NewIntentClassifier builds a classifier over the given priority-ordered
// table. Pass DefaultIntentTable() for the standard behaviour.
func NewIntentClassifier(table []IntentEntry) *IntentClassifier {
	t := make([]IntentEntry, len(table))
	copy(t, table)
	return &IntentClassifier{table: t}
}

// Classify returns the first intent (in table order) with a matching synonym
// and ok=true, or ("", false) when nothing matches. Callers must treat a
// non-match as "ask the user to repeat", never as a silent default.
//
// utterance should already be normalized (see Normalize); Classify tokenises
// it and also considers the token-joined form so multi-word synonyms like
// "viewcomplaints" match "view complaints".
func (c *IntentClassifier) Classify(utterance string) (Intent, bool) {
	tokens := strings.Fields(utterance)
	if len(tokens) == 0 {
		return "", false
	}
	joined := strings.Join(tokens, "")

	for _, entry := range c.table {
		for _, syn := range entry.Synonyms {
			if syn == "" {
				continue
			}
			if strings.Contains(joined, syn) {
				return entry.Intent, true
			}
			for _, tok := range tokens {
				// Truncated speech tolerance: "regist" matches "register".
				// Prefix only, 3+ runes — a bare Contains would let the
				// "complaint" token match inside "viewcomplaints", and
				// filler words like "i" are substrings of half the table.
				if len(tok) >= 3 && strings.HasPrefix(syn, tok) {
					return entry.Intent, true
				}
				if strings.Contains(tok, syn) {
					return entry.Intent, true
				}
			}
		}
	}
	return "", false
}

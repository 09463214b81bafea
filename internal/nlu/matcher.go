package nlu

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// FallbackCategory is the catch-all issue category used when no configured
// category matches the utterance confidently. The complaint service is
// required to know it, and the dialogue engine pairs it with the user's
// free-text description.
const FallbackCategory = "Others"

// DefaultMatchThreshold is the minimum similarity score an issue category
// must reach to be accepted without falling back. It is a tuning constant,
// not a protocol value — override it via MatcherConfig.
const DefaultMatchThreshold = 0.6

// MatcherConfig is the classification policy for an IssueMatcher.
type MatcherConfig struct {
	// Threshold is the minimum similarity in [0,1] for a category match.
	// Zero means DefaultMatchThreshold.
	Threshold float64

	// AmbiguityMargin, when positive, causes a near-tie between the two
	// best-scoring categories (both above Threshold, scores within the
	// margin) to fall back to FallbackCategory instead of picking the
	// first. Zero disables ambiguity detection, matching the historical
	// behaviour of always trusting the top score.
	AmbiguityMargin float64
}

// MatchResult is the outcome of a single IssueMatcher invocation. It is
// consumed by exactly one dialogue transition and never persisted.
type MatchResult struct {
	// Category is the matched category label, or FallbackCategory.
	Category string

	// Fallback reports whether no category cleared the threshold.
	Fallback bool

	// CustomDescription carries the user's raw utterance (trimmed) when
	// Fallback is true and the utterance was non-empty. Empty otherwise.
	// The engine must not create a complaint from a fallback result with
	// an empty description.
	CustomDescription string

	// Confidence is the winning similarity score in [0,1]; 0 on fallback.
	Confidence float64
}

// IssueMatcher maps free-form utterances to one of a dynamic list of issue
// categories using Damerau-Levenshtein similarity, which tolerates the
// transpositions and dropped letters typical of speech transcripts
// ("power failer" → "Power failure").
//
// The matcher is read-only after construction and safe for concurrent use.
type IssueMatcher struct {
	threshold float64
	margin    float64
}

// NewIssueMatcher creates an IssueMatcher with the given policy.
func NewIssueMatcher(cfg MatcherConfig) *IssueMatcher {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultMatchThreshold
	}
	return &IssueMatcher{threshold: threshold, margin: cfg.AmbiguityMargin}
}

// Match scores raw against every category label and returns the best match,
// or the fallback result when no label clears the threshold. Ties on exact
// score resolve to the earlier category in list order. categories should not
// contain FallbackCategory — the engine strips it from the offered list.
//
// raw is the user's original utterance; scoring runs on its normalized form
// against lowercased labels, but CustomDescription preserves raw.
func (m *IssueMatcher) Match(raw string, categories []string) MatchResult {
	utterance := Normalize(raw)

	best, second := -1.0, -1.0
	bestIdx := -1
	for i, cat := range categories {
		score := similarity(utterance, strings.ToLower(cat))
		if score > best {
			second = best
			best, bestIdx = score, i
		} else if score > second {
			second = score
		}
	}

	ambiguous := m.margin > 0 && second >= m.threshold && best-second <= m.margin

	if bestIdx < 0 || best < m.threshold || ambiguous {
		return MatchResult{
			Category:          FallbackCategory,
			Fallback:          true,
			CustomDescription: strings.TrimSpace(raw),
		}
	}
	return MatchResult{Category: categories[bestIdx], Confidence: best}
}

// similarity converts Damerau-Levenshtein edit distance into a [0,1] score
// normalized by the longer string. Identical strings score 1; two empty
// strings score 0 (an empty utterance never matches a category).
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	dist := matchr.DamerauLevenshtein(a, b)
	if dist >= longest {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}

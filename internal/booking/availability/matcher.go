package availability

import (
	"context"
	"time"

	"estatebot_backend/internal/booking/timeparse"

	"github.com/google/uuid"
)

// MatchResult is the outcome of resolving a lead's time preference.
// ExactMatch is nil when nothing bookable sits close enough to the parsed
// preference; Alternatives then carries the slots to offer instead.
type MatchResult struct {
	ExactMatch   *time.Time
	Alternatives []time.Time
}

// Matcher resolves a free-text time preference to a bookable slot.
type Matcher struct {
	parser    *timeparse.Parser
	finder    *Finder
	tolerance time.Duration
}

// NewMatcher creates a Matcher. The tolerance bounds how far a candidate
// slot may sit from the parsed preference and still count as an exact match.
func NewMatcher(parser *timeparse.Parser, finder *Finder, tolerance time.Duration) *Matcher {
	return &Matcher{
		parser:    parser,
		finder:    finder,
		tolerance: tolerance,
	}
}

// Match parses the message, fetches candidates biased toward the parsed
// instant, and splits them into an exact match and alternatives. With no
// parsed preference the result is purely chronological alternatives.
func (m *Matcher) Match(ctx context.Context, agentID uuid.UUID, userMessage string) MatchResult {
	preferred := m.parser.Parse(userMessage)
	candidates := m.finder.FindSlots(ctx, agentID, preferred, 0)

	if preferred == nil {
		return MatchResult{Alternatives: candidates}
	}

	var result MatchResult
	for _, slot := range candidates {
		if result.ExactMatch == nil && absDistance(slot, *preferred) <= m.tolerance {
			s := slot
			result.ExactMatch = &s
			continue
		}
		result.Alternatives = append(result.Alternatives, slot)
	}
	return result
}

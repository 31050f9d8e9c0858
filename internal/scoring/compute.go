package scoring

import (
	"strconv"

	"github.com/imperius/imperius/internal/store"
)

// Per-category caps. Quality sub-terms carry their own caps before the sum
// is re-capped.
const (
	categoryCap    = 100
	timeTermCap    = 40
	pagesTermCap   = 30
	scrollTermCap  = 30
	intentCTA      = 20
	intentForm     = 15
	intentCalc     = 25
	pointsPerPage  = 15
	pointsPerMin   = 10
)

// Breakdown is a computed lead score before persistence.
type Breakdown struct {
	Total      int
	Engagement int
	Intent     int
	Quality    int
}

// Compute derives the full score breakdown from a session's action history.
// It is pure: calling it twice over the same events yields the same result,
// which is what makes recomputation idempotent.
func Compute(actions []*store.Action) Breakdown {
	var b Breakdown

	var ctaClicks, formFocuses, calculatorUses int
	distinctPages := make(map[string]struct{})
	maxScroll := 0

	for _, a := range actions {
		b.Total += a.ScoreImpact

		switch a.ActionType {
		case ActionCTAClick:
			ctaClicks++
		case ActionFormFocus:
			formFocuses++
		case ActionCalculatorUse:
			calculatorUses++
		case ActionPageView:
			page := a.ActionValue
			if page == "" {
				page = "/"
			}
			distinctPages[page] = struct{}{}
		case ActionScroll50:
			maxScroll = max(maxScroll, 50)
		case ActionScroll75:
			maxScroll = max(maxScroll, 75)
		}

		// Trackers may report exact scroll depth as the action value.
		if a.ActionType == ActionScroll50 || a.ActionType == ActionScroll75 {
			if depth, err := strconv.Atoi(a.ActionValue); err == nil {
				maxScroll = max(maxScroll, min(depth, 100))
			}
		}
	}

	if b.Total < 0 {
		b.Total = 0
	}

	b.Engagement = min(b.Total, categoryCap)

	b.Intent = min(
		intentCTA*ctaClicks+intentForm*formFocuses+intentCalc*calculatorUses,
		categoryCap,
	)

	minutes := minutesOnSite(actions)
	timeTerm := min(pointsPerMin*minutes, timeTermCap)
	pagesTerm := min(pointsPerPage*len(distinctPages), pagesTermCap)
	scrollTerm := min(maxScroll/10, scrollTermCap)
	b.Quality = min(timeTerm+pagesTerm+scrollTerm, categoryCap)

	return b
}

// Qualify bands a total score for presentation: hot, warm or cold.
func Qualify(totalScore int) string {
	switch {
	case totalScore >= 80:
		return "hot"
	case totalScore >= 50:
		return "warm"
	default:
		return "cold"
	}
}

// minutesOnSite is the whole-minute span between the first and last
// recorded action. A single event means zero minutes.
func minutesOnSite(actions []*store.Action) int {
	if len(actions) < 2 {
		return 0
	}

	first := actions[0].CreatedAt
	last := actions[0].CreatedAt
	for _, a := range actions[1:] {
		if a.CreatedAt.Before(first) {
			first = a.CreatedAt
		}
		if a.CreatedAt.After(last) {
			last = a.CreatedAt
		}
	}

	return int(last.Sub(first).Minutes())
}

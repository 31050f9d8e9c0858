package scoring

import "strings"

// Action types the landing page tracker emits. calculator_use is a typed
// action; it is never inferred from element-id text.
const (
	ActionPageView      = "page_view"
	ActionScroll50      = "scroll_50"
	ActionScroll75      = "scroll_75"
	ActionFormFocus     = "form_focus"
	ActionCTAClick      = "cta_click"
	ActionCalculatorUse = "calculator_use"
	ActionVideoWatch    = "video_watch"
	ActionMultiplePages = "multiple_pages"
	ActionReturnVisit   = "return_visit"
	ActionEmailFill     = "email_fill"
)

// businessEmailBonus is added when an email_fill carries a non-free-provider
// address.
const businessEmailBonus = 15

var basePoints = map[string]int{
	ActionPageView:      1,
	ActionScroll50:      3,
	ActionScroll75:      5,
	ActionFormFocus:     8,
	ActionCTAClick:      12,
	ActionCalculatorUse: 15,
	ActionVideoWatch:    10,
	ActionMultiplePages: 7,
	ActionReturnVisit:   10,
	ActionEmailFill:     25,
}

var freeEmailProviders = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
}

// Impact maps an action to its point value. Unrecognized action types score
// zero; the function never fails.
func Impact(actionType, actionValue string) int {
	points := basePoints[actionType]

	if actionType == ActionEmailFill && IsBusinessEmail(actionValue) {
		points += businessEmailBonus
	}

	return points
}

// IsBusinessEmail reports whether the address has a domain outside the
// common free providers. Addresses without an @ are not emails at all and
// never qualify.
func IsBusinessEmail(address string) bool {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return false
	}

	domain := strings.ToLower(address[at+1:])
	_, free := freeEmailProviders[domain]
	return !free
}

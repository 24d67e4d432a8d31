package validation

import (
	"encoding/json"
	"time"
)

// Problem is the classified deviation for one (collection, chain) pair
type Problem int

const (
	ProblemNone Problem = iota
	ProblemQueryError
	ProblemNoTodayData
	ProblemLatestNotToday
	// ProblemStaleUpdate is reserved for future general-policy rules; no
	// current rule emits it, but keeping the category lets new checks slot
	// in without widening the enum.
	ProblemStaleUpdate
)

// String implements fmt.Stringer
func (p Problem) String() string {
	switch p {
	case ProblemNone:
		return "none"
	case ProblemQueryError:
		return "query_error"
	case ProblemNoTodayData:
		return "no_today_data"
	case ProblemLatestNotToday:
		return "latest_not_today"
	case ProblemStaleUpdate:
		return "stale_update"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the category name in snapshots
func (p Problem) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Classifier maps evaluation results to problem categories.
//
// FreshTodayOK relaxes the general policy: the overnight batch is expected to
// carry yesterday's date, but with the switch on, a record freshly created
// today also passes.
type Classifier struct {
	Loc          *time.Location
	FreshTodayOK bool
}

// Classify labels one result under its policy, referenceToday being "now" of
// the run. Rules are checked in priority order; first match wins.
func (c Classifier) Classify(res Result, policy Policy, referenceToday time.Time) Problem {
	if res.Failed() {
		return ProblemQueryError
	}

	today := CivilDate(referenceToday, c.Loc)

	if policy == PolicyStrict {
		// The count check dominates: even a same-day latest record does not
		// excuse an empty today window
		if res.TodayCount == 0 {
			return ProblemNoTodayData
		}
		if res.Latest == nil || CivilDate(*res.Latest, c.Loc) != today {
			return ProblemLatestNotToday
		}
		return ProblemNone
	}

	// General policy: the overnight landing should carry yesterday's date
	if res.Latest == nil {
		return ProblemLatestNotToday
	}

	yesterday := CivilDate(referenceToday.In(c.Loc).AddDate(0, 0, -1), c.Loc)
	latestDate := CivilDate(*res.Latest, c.Loc)

	if latestDate == yesterday {
		return ProblemNone
	}
	if c.FreshTodayOK && latestDate == today {
		return ProblemNone
	}

	return ProblemLatestNotToday
}

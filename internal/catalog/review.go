package catalog

import "fmt"

// ReviewAction is a tagged variant describing what a review operation applies
// to: exactly one of Single or Batch is set.
type ReviewAction struct {
	single *MatchResult
	batch  []MatchResult
}

// SingleAction wraps one match result for review handling.
func SingleAction(result MatchResult) ReviewAction {
	return ReviewAction{single: &result}
}

// BatchAction wraps a set of match results for review handling.
func BatchAction(results []MatchResult) ReviewAction {
	return ReviewAction{batch: results}
}

// Apply dispatches to exactly one of the provided handlers. It returns an
// error if the action is the zero value or if the matching handler is nil.
func (a ReviewAction) Apply(single func(MatchResult) error, batch func([]MatchResult) error) error {
	switch {
	case a.single != nil:
		if single == nil {
			return fmt.Errorf("review action: no single handler")
		}
		return single(*a.single)
	case a.batch != nil:
		if batch == nil {
			return fmt.Errorf("review action: no batch handler")
		}
		return batch(a.batch)
	default:
		return fmt.Errorf("review action: empty variant")
	}
}

// Results returns the affected match results regardless of arm.
func (a ReviewAction) Results() []MatchResult {
	if a.single != nil {
		return []MatchResult{*a.single}
	}
	return a.batch
}

package market

import (
	"time"

	"github.com/meenmo/caplib/observe"
)

// EvaluationDate is the pricing as-of date, shared by every instrument in
// a valuation session. Dependents register for changes so a date roll
// invalidates cached results.
type EvaluationDate struct {
	observe.Observable

	date time.Time
}

// NewEvaluationDate wraps a pricing date.
func NewEvaluationDate(t time.Time) *EvaluationDate {
	return &EvaluationDate{date: t}
}

// Date returns the current evaluation date.
func (e *EvaluationDate) Date() time.Time { return e.date }

// SetDate rolls the evaluation date and notifies dependents.
func (e *EvaluationDate) SetDate(t time.Time) {
	e.date = t
	e.NotifyObservers()
}

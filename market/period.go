package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meenmo/caplib/utils"
)

// Period is a tenor expressed in whole months (3 == 3M, 24 == 2Y).
type Period int

// Months returns the tenor length in months.
func (p Period) Months() int {
	return int(p)
}

// String renders the tenor in market shorthand: whole years as "2Y",
// everything else as months ("18M").
func (p Period) String() string {
	if p%12 == 0 && p != 0 {
		return fmt.Sprintf("%dY", p/12)
	}
	return fmt.Sprintf("%dM", int(p))
}

// ParsePeriod reads tenor strings like "3M", "18M", "2Y".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("ParsePeriod: invalid tenor %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("ParsePeriod: invalid tenor %q: %w", s, err)
	}
	switch s[len(s)-1] {
	case 'M':
		return Period(n), nil
	case 'Y':
		return Period(12 * n), nil
	default:
		return 0, fmt.Errorf("ParsePeriod: unsupported tenor unit in %q", s)
	}
}

// AddTo advances t by the period, EDATE-style (no business-day adjustment).
func (p Period) AddTo(t time.Time) time.Time {
	return utils.AddMonth(t, int(p))
}

package debt

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the store.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date. Longer ISO-8601 values are accepted
// and truncated to their date part.
func ParseDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// AddMonthClamped moves t forward one calendar month. When the day does not
// exist in the next month it is clamped to that month's last day.
func AddMonthClamped(t time.Time) time.Time {
	y, m, d := t.Date()
	firstOfNext := time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, 0, 0, 0, 0, t.Location())
}

// RollMonth advances a YYYY-MM-DD date by one clamped month.
// An empty date stays empty.
func RollMonth(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return AddMonthClamped(t).Format(DateLayout), nil
}

// Package history stores the question/answer records the relay accumulates:
// a question row is inserted when a chat begins and its answer filled in once
// the stream completes.
package history

import (
	"fmt"
	"time"
)

// Record is one stored question, with its answer once one arrived. Answer is
// nil while the chat is still streaming (or never completed).
type Record struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Answer   *string   `json:"answer"`
	Time     time.Time `json:"time"`
}

// TimeFilter restricts a listing to a recency window.
type TimeFilter string

const (
	FilterAll   TimeFilter = "all"
	FilterToday TimeFilter = "today"
	FilterWeek  TimeFilter = "week"
	FilterMonth TimeFilter = "month"
)

// ParseTimeFilter validates a user-supplied filter name. Empty means all.
func ParseTimeFilter(s string) (TimeFilter, error) {
	switch TimeFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterToday, FilterWeek, FilterMonth:
		return TimeFilter(s), nil
	default:
		return "", fmt.Errorf("unknown time filter %q (valid: all, today, week, month)", s)
	}
}

// Cutoff returns the earliest Time a record may have to pass the filter.
// The second return value is false when the filter imposes no cutoff.
func (f TimeFilter) Cutoff(now time.Time) (time.Time, bool) {
	switch f {
	case FilterToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case FilterWeek:
		return now.Add(-7 * 24 * time.Hour), true
	case FilterMonth:
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

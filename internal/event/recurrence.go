package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultRecurrenceRule is assumed for recurring events that never stored
// an explicit rule
const DefaultRecurrenceRule = "FREQ=WEEKLY"

// ParseRule parses an RFC 5545 RRULE string anchored at the given start
func ParseRule(ruleStr string, dtstart time.Time) (*rrule.RRule, error) {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule %q: %w", ruleStr, err)
	}
	opt.Dtstart = dtstart.UTC()
	return rrule.NewRRule(*opt)
}

// NextAfter returns the first occurrence strictly after the given instant,
// or the zero time when the rule has no future occurrences
func NextAfter(ruleStr string, dtstart, after time.Time) (time.Time, error) {
	if ruleStr == "" {
		ruleStr = DefaultRecurrenceRule
	}
	rule, err := ParseRule(ruleStr, dtstart)
	if err != nil {
		return time.Time{}, err
	}

	next := rule.After(after.UTC(), false)
	if next.IsZero() {
		return time.Time{}, nil
	}
	// rrule can hand back the anchor itself when after == dtstart
	if !next.After(after.UTC()) {
		next = rule.After(next.Add(time.Second), true)
		if next.IsZero() {
			return time.Time{}, nil
		}
	}
	return next.UTC(), nil
}

// NextForRecord computes the successor start for a recurring record,
// strictly after the given instant
func NextForRecord(r *Record, after time.Time) (time.Time, error) {
	start, err := r.StartTime()
	if err != nil {
		return time.Time{}, err
	}
	return NextAfter(r.RecurrenceRule, start, after)
}

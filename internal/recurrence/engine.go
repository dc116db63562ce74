package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HardIterationLimit caps open-ended expansion so display callers that
// supply no explicit bound still terminate. 52 covers a year of weekly
// service.
const HardIterationLimit = 52

// Rule describes the recurrence configuration of a booking series.
//
// FrequencyRepeats, when set, takes precedence over FrequencyName. The
// name is only consulted to look up a repeat unit when no explicit one
// was supplied.
type Rule struct {
	StartDate        time.Time
	EndDate          *time.Time
	FrequencyName    string
	FrequencyRepeats string
}

// Options bounds occurrence expansion. Zero values leave the
// corresponding bound open; the engine then falls back to
// HardIterationLimit.
type Options struct {
	MaxOccurrences int
	UpTo           *time.Time
}

// ErrInvalidRule indicates the rule start date is absent.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// ErrUnknownFrequency indicates no repeat unit could be resolved from
// the rule's frequency fields.
var ErrUnknownFrequency = errors.New("recurrence: unknown frequency")

// Interval is a parsed repeat unit. Exactly one of Days or Months is
// positive for a valid interval.
type Interval struct {
	Days   int
	Months int
}

// ParseInterval parses repeat units of the form "7 days", "1 month" or
// "2 weeks". Singular and plural unit names are accepted.
func ParseInterval(repeats string) (Interval, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(repeats)))
	if len(fields) != 2 {
		return Interval{}, fmt.Errorf("%w: malformed repeat unit %q", ErrUnknownFrequency, repeats)
	}

	count, err := strconv.Atoi(fields[0])
	if err != nil || count <= 0 {
		return Interval{}, fmt.Errorf("%w: repeat count in %q must be a positive integer", ErrUnknownFrequency, repeats)
	}

	switch strings.TrimSuffix(fields[1], "s") {
	case "day":
		return Interval{Days: count}, nil
	case "week":
		return Interval{Days: count * 7}, nil
	case "month":
		return Interval{Months: count}, nil
	default:
		return Interval{}, fmt.Errorf("%w: unsupported repeat unit %q", ErrUnknownFrequency, repeats)
	}
}

// ResolveInterval determines the repeat interval for a rule, preferring
// the explicit repeat unit over the built-in frequency catalog.
func ResolveInterval(rule Rule) (Interval, error) {
	if strings.TrimSpace(rule.FrequencyRepeats) != "" {
		return ParseInterval(rule.FrequencyRepeats)
	}
	if repeats, ok := DefaultRepeats(rule.FrequencyName); ok {
		return ParseInterval(repeats)
	}
	return Interval{}, fmt.Errorf("%w: no repeat unit for frequency %q", ErrUnknownFrequency, rule.FrequencyName)
}

// NewDate constructs a normalized calendar date (midnight UTC). All
// occurrence dates produced by the engine share this normal form.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates an arbitrary instant to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return NewDate(year, month, day)
}

// Expand produces the ordered occurrence dates of a rule.
//
// The sequence always begins with the rule's start date, even when the
// start lies past the end bound. Subsequent candidates are generated by
// stepping the interval from the start (monthly steps clamp to the last
// day of shorter months) and are cut off by the first exhausted bound:
// Options.MaxOccurrences, the rule's EndDate, Options.UpTo, or the hard
// iteration ceiling. The result is strictly increasing and free of
// duplicates.
func Expand(rule Rule, opts Options) ([]time.Time, error) {
	if rule.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrInvalidRule)
	}

	interval, err := ResolveInterval(rule)
	if err != nil {
		return nil, err
	}

	start := DateOf(rule.StartDate)

	var end time.Time
	if rule.EndDate != nil {
		end = DateOf(*rule.EndDate)
	}
	var upTo time.Time
	if opts.UpTo != nil {
		upTo = DateOf(*opts.UpTo)
	}

	limit := opts.MaxOccurrences
	if limit <= 0 || limit > HardIterationLimit {
		limit = HardIterationLimit
	}

	dates := make([]time.Time, 0, limit)
	dates = append(dates, start)

	for step := 1; len(dates) < limit; step++ {
		candidate := advance(start, interval, step)
		if !end.IsZero() && candidate.After(end) {
			break
		}
		if !upTo.IsZero() && candidate.After(upTo) {
			break
		}
		dates = append(dates, candidate)
	}

	return dates, nil
}

// advance computes the step-th occurrence after start. Monthly intervals
// are always derived from the start date so an anchor on the 31st keeps
// reattaching to month ends (Jan 31, Feb 28, Mar 31) instead of
// drifting after the first short month.
func advance(start time.Time, interval Interval, step int) time.Time {
	if interval.Months > 0 {
		return addMonthsClamped(start, interval.Months*step)
	}
	return start.AddDate(0, 0, interval.Days*step)
}

func addMonthsClamped(date time.Time, months int) time.Time {
	year, month, day := date.Date()

	total := int(month) - 1 + months
	targetYear := year + total/12
	targetMonth := time.Month(total%12 + 1)

	if last := daysIn(targetYear, targetMonth); day > last {
		day = last
	}
	return NewDate(targetYear, targetMonth, day)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

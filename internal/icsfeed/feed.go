// Package icsfeed renders recurring booking series as iCalendar feeds
// that customers can subscribe to from their own calendar clients.
package icsfeed

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/example/cleanbook/internal/application"
	"github.com/example/cleanbook/internal/recurrence"
)

const (
	productID = "-//cleanbook//Booking Feed//EN"

	// Visit duration is not tracked per booking; feeds block out a
	// standard two hour window.
	defaultVisitDuration = 2 * time.Hour
)

// BuildSeriesCalendar renders one series as a VCALENDAR.
//
// Rules that RFC 5545 can express exactly become a single master VEVENT
// with an RRULE. Monthly rules anchored past the 28th cannot: RFC 5545
// skips months missing the anchor day while the booking engine clamps
// to the month end, so those series are flattened into one VEVENT per
// occurrence instead.
func BuildSeriesCalendar(series application.RecurringSeries, parent application.Booking, now time.Time) (*ical.Calendar, error) {
	interval, err := recurrence.ResolveInterval(recurrence.Rule{
		FrequencyName:    series.FrequencyName,
		FrequencyRepeats: series.FrequencyRepeats,
	})
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropName, fmt.Sprintf("Cleaning visits for %s", parent.CustomerName))

	if representableAsRRule(series, interval) {
		event, err := masterEvent(series, parent, interval, now)
		if err != nil {
			return nil, err
		}
		cal.Children = append(cal.Children, event.Component)
		return cal, nil
	}

	dates, err := recurrence.Expand(recurrence.Rule{
		StartDate:        series.StartDate,
		EndDate:          series.EndDate,
		FrequencyName:    series.FrequencyName,
		FrequencyRepeats: series.FrequencyRepeats,
	}, recurrence.Options{})
	if err != nil {
		return nil, err
	}
	for i, date := range dates {
		event := occurrenceEvent(series, parent, date, now)
		event.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%d@cleanbook", series.ID, i))
		cal.Children = append(cal.Children, event.Component)
	}
	return cal, nil
}

// Encode writes the calendar in wire format.
func Encode(w io.Writer, cal *ical.Calendar) error {
	return ical.NewEncoder(w).Encode(cal)
}

// representableAsRRule reports whether RFC 5545 recurrence reproduces
// the engine's dates exactly.
func representableAsRRule(series application.RecurringSeries, interval recurrence.Interval) bool {
	if interval.Months == 0 {
		return true
	}
	return series.StartDate.Day() <= 28
}

func masterEvent(series application.RecurringSeries, parent application.Booking, interval recurrence.Interval, now time.Time) (*ical.Event, error) {
	opt := rrule.ROption{Dtstart: visitStart(series.StartDate, series.ScheduledTime)}
	switch {
	case interval.Months > 0:
		opt.Freq = rrule.MONTHLY
		opt.Interval = interval.Months
	case interval.Days%7 == 0:
		opt.Freq = rrule.WEEKLY
		opt.Interval = interval.Days / 7
	default:
		opt.Freq = rrule.DAILY
		opt.Interval = interval.Days
	}
	if series.EndDate != nil {
		opt.Until = visitStart(*series.EndDate, series.ScheduledTime)
	} else {
		// Open-ended rules are bounded the same way display expansion is.
		opt.Count = recurrence.HardIterationLimit
	}
	if _, err := rrule.NewRRule(opt); err != nil {
		return nil, fmt.Errorf("series %s: %w", series.ID, err)
	}

	event := occurrenceEvent(series, parent, series.StartDate, now)
	event.Props.SetText(ical.PropUID, fmt.Sprintf("%s@cleanbook", series.ID))
	event.Props.SetRecurrenceRule(&opt)
	return event, nil
}

func occurrenceEvent(series application.RecurringSeries, parent application.Booking, date time.Time, now time.Time) *ical.Event {
	start := visitStart(date, series.ScheduledTime)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropSummary, fmt.Sprintf("%s: %s", parent.ServiceType, parent.CustomerName))
	event.Props.SetText(ical.PropLocation, parent.Address)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(defaultVisitDuration))
	return event
}

// visitStart combines a calendar date with the series' HH:MM time of
// day. A missing or malformed time falls back to midnight.
func visitStart(date time.Time, scheduledTime string) time.Time {
	day := recurrence.DateOf(date)
	parsed, err := time.Parse("15:04", scheduledTime)
	if err != nil {
		return day
	}
	return day.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute)
}

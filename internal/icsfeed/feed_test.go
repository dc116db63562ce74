package icsfeed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/cleanbook/internal/application"
	"github.com/example/cleanbook/internal/recurrence"
)

func testSeries() application.RecurringSeries {
	return application.RecurringSeries{
		ID:               "ser-100",
		BusinessID:       "biz-001",
		StartDate:        recurrence.NewDate(2025, time.January, 6),
		FrequencyName:    "Weekly",
		FrequencyRepeats: "7 days",
		OccurrencesAhead: 8,
		ScheduledTime:    "09:00",
	}
}

func testParent() application.Booking {
	return application.Booking{
		ID:           "bkg-100",
		BusinessID:   "biz-001",
		CustomerName: "Dana Miles",
		Address:      "12 Elm St",
		ServiceType:  "Standard Clean",
		Date:         recurrence.NewDate(2025, time.January, 6),
	}
}

func TestBuildSeriesCalendarWeeklyRRule(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)

	cal, err := BuildSeriesCalendar(testSeries(), testParent(), now)
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 1)

	event := events[0]
	uid := event.Props.Get(ical.PropUID)
	require.NotNil(t, uid)
	assert.Equal(t, "ser-100@cleanbook", uid.Value)

	rule := event.Props.Get(ical.PropRecurrenceRule)
	require.NotNil(t, rule)
	assert.Contains(t, rule.Value, "FREQ=WEEKLY")
	assert.Contains(t, rule.Value, "COUNT=52")

	start, err := event.Props.Get(ical.PropDateTimeStart).DateTime(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC), start)
}

func TestBuildSeriesCalendarEndDateBecomesUntil(t *testing.T) {
	t.Parallel()
	series := testSeries()
	end := recurrence.NewDate(2025, time.March, 31)
	series.EndDate = &end

	cal, err := BuildSeriesCalendar(series, testParent(), time.Now())
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 1)
	rule := events[0].Props.Get(ical.PropRecurrenceRule)
	require.NotNil(t, rule)
	assert.Contains(t, rule.Value, "UNTIL=20250331")
	assert.NotContains(t, rule.Value, "COUNT=")
}

func TestBuildSeriesCalendarMonthEndFlattens(t *testing.T) {
	t.Parallel()
	series := testSeries()
	series.StartDate = recurrence.NewDate(2025, time.January, 31)
	series.FrequencyName = "Monthly"
	series.FrequencyRepeats = "1 month"
	end := recurrence.NewDate(2025, time.March, 31)
	series.EndDate = &end

	cal, err := BuildSeriesCalendar(series, testParent(), time.Now())
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 3, "month-end anchors are exported one event per occurrence")

	for _, event := range events {
		assert.Nil(t, event.Props.Get(ical.PropRecurrenceRule))
	}
	second, err := events[1].Props.Get(ical.PropDateTimeStart).DateTime(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 28, second.Day(), "February occurrence clamps to the month end")
}

func TestBuildSeriesCalendarMidMonthKeepsRRule(t *testing.T) {
	t.Parallel()
	series := testSeries()
	series.StartDate = recurrence.NewDate(2025, time.January, 15)
	series.FrequencyName = "Monthly"
	series.FrequencyRepeats = "1 month"

	cal, err := BuildSeriesCalendar(series, testParent(), time.Now())
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 1)
	rule := events[0].Props.Get(ical.PropRecurrenceRule)
	require.NotNil(t, rule)
	assert.Contains(t, rule.Value, "FREQ=MONTHLY")
}

func TestBuildSeriesCalendarUnknownFrequency(t *testing.T) {
	t.Parallel()
	series := testSeries()
	series.FrequencyName = "Sometimes"
	series.FrequencyRepeats = ""

	_, err := BuildSeriesCalendar(series, testParent(), time.Now())
	assert.ErrorIs(t, err, recurrence.ErrUnknownFrequency)
}

func TestEncodeProducesWireFormat(t *testing.T) {
	t.Parallel()
	cal, err := BuildSeriesCalendar(testSeries(), testParent(), time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cal))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "SUMMARY:Standard Clean: Dana Miles")
	assert.Contains(t, out, "LOCATION:12 Elm St")
}

func TestEncodeEmitsRecurValuedRRule(t *testing.T) {
	t.Parallel()
	cal, err := BuildSeriesCalendar(testSeries(), testParent(), time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cal))

	// Calendar clients ignore an RRULE carrying a TEXT value type, so
	// the rule must reach the wire as a bare RECUR property with
	// unescaped semicolons.
	out := buf.String()
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;INTERVAL=1;COUNT=52")
	assert.NotContains(t, out, "VALUE=TEXT")
	assert.NotContains(t, out, `\;`)
}

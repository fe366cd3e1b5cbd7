package gtfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SecondsPerServiceDay is the width of the window of departures considered part of a service day
const SecondsPerServiceDay = 24 * 60 * 60

// ServiceDayMidnight returns 12am of the calendar date of t, in t's location
func ServiceDayMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ServiceDayEnd returns the first instant after the service day starting at serviceDayMidnight
func ServiceDayEnd(serviceDayMidnight time.Time) time.Time {
	return serviceDayMidnight.Add(SecondsPerServiceDay * time.Second)
}

// SecondsFromGTFSTime parses seconds of the schedule day from string defined in gtfs as :
// Time in the HH:MM:SS format (H:MM:SS is also accepted). For times occurring after midnight, enter the time as a
// value greater than 24:00:00 in HH:MM:SS local time for the day on which the trip schedule begins.
// Example: 14:30:00 for 2:30PM or 25:35:00 for 1:35AM on the next day.
func SecondsFromGTFSTime(gtfsTime string) (int, error) {
	parts := strings.Split(strings.TrimSpace(gtfsTime), ":")
	if len(parts) != 3 {
		return 0, &ParseError{Value: gtfsTime, Reason: fmt.Errorf("expected three fields separated by colons")}
	}
	var fields [3]int
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, &ParseError{Value: gtfsTime, Reason: err}
		}
		if value < 0 {
			return 0, &ParseError{Value: gtfsTime, Reason: fmt.Errorf("negative component %d", value)}
		}
		fields[i] = value
	}
	return (fields[0] * 60 * 60) + (fields[1] * 60) + fields[2], nil
}

// MakeScheduleTime produces the absolute time scheduleSeconds after serviceDayMidnight
func MakeScheduleTime(serviceDayMidnight time.Time, scheduleSeconds int) time.Time {
	return serviceDayMidnight.Add(time.Duration(scheduleSeconds) * time.Second)
}

// ToAbsolute converts a gtfs "H:MM:SS" time into an absolute time anchored to serviceDayMidnight.
// Returns *ParseError when localTime is malformed
func ToAbsolute(localTime string, serviceDayMidnight time.Time) (time.Time, error) {
	seconds, err := SecondsFromGTFSTime(localTime)
	if err != nil {
		return time.Time{}, err
	}
	return MakeScheduleTime(serviceDayMidnight, seconds), nil
}

package reporter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/OpenTransitTools/delayreport/business/reconcile"
)

// clockLayout formats the cycle time at the start of every report line, e.g. "03:04 PM"
const clockLayout = "03:04 PM"

// FormatReport renders report as lines of text stamped with at.
// Delayed trips come first, or a single "No delayed routes" line when there are none, followed by missing trips.
// When includeOnTime is true a count of on time trips ends the report.
// Errors looking up trips or stops in schedule are returned
func FormatReport(schedule *gtfs.Schedule, report reconcile.Report, at time.Time, includeOnTime bool) ([]string, error) {
	stamp := "[" + at.Format(clockLayout) + "]"
	lines := make([]string, 0, len(report.Delayed)+len(report.Missing)+2)

	for _, delayed := range report.Delayed {
		line, err := formatDelayed(schedule, stamp, delayed)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if len(report.Delayed) == 0 {
		lines = append(lines, stamp+" No delayed routes")
	}

	for _, missing := range report.Missing {
		line, err := formatMissing(schedule, stamp, missing)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if includeOnTime {
		lines = append(lines, fmt.Sprintf("%s %d trips on time", stamp, len(report.OnTime)))
	}
	return lines, nil
}

func formatDelayed(schedule *gtfs.Schedule, stamp string, delayed reconcile.Delayed) (string, error) {
	trip, present := schedule.Trip(delayed.TripId)
	if !present {
		return "", fmt.Errorf("unable to format delayed trip: unknown trip_id %s", delayed.TripId)
	}
	stopName, err := schedule.StopName(delayed.NextStopId)
	if err != nil {
		return "", fmt.Errorf("unable to format delayed trip %s: %w", delayed.TripId, err)
	}
	return fmt.Sprintf("%s Route %s to %s expected at %s (%s) is delayed %s minutes (vehicle %s)",
		stamp, delayed.RouteId, trip.Headsign(), stopName, delayed.NextStopId,
		strconv.FormatFloat(delayed.DelayMinutes, 'f', 1, 64), delayed.VehicleId), nil
}

func formatMissing(schedule *gtfs.Schedule, stamp string, missing reconcile.Missing) (string, error) {
	stopName, err := schedule.StopName(missing.ClosestStopId)
	if err != nil {
		return "", fmt.Errorf("unable to format missing trip %s: %w", missing.TripId, err)
	}
	return fmt.Sprintf("%s Route %s to %s is not being tracked near %s (%s)",
		stamp, missing.RouteId, missing.Headsign, stopName, missing.ClosestStopId), nil
}

// Package reconcile decides which scheduled trips should be running and compares them against real time observations
package reconcile

import (
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
)

// SelectActive returns the set of trip ids that should be in service at now.
// A trip is a candidate when any of its departures falls within the schedule's service day. Candidates must pass
// filter, and are active when the stop_sequence 1 departure is at or before now and the last stop's departure is
// at or after now. Trips without a first or last stop departure are never active.
// filter may be nil
func SelectActive(schedule *gtfs.Schedule, filter *ServiceFilter, now time.Time) map[string]bool {
	midnight := schedule.ServiceDay()
	end := gtfs.ServiceDayEnd(midnight)
	active := make(map[string]bool)

	for _, tripId := range schedule.TripIds() {
		stops := schedule.StopsForTrip(tripId)
		if !departsWithin(stops, midnight, end) {
			continue
		}
		trip, _ := schedule.Trip(tripId)
		if !filter.Allows(schedule, trip, midnight) {
			continue
		}
		first, last := firstAndLast(stops)
		if !first.HasDeparture() || !last.HasDeparture() {
			continue
		}
		if !first.DepartureDateTime.After(now) && !last.DepartureDateTime.Before(now) {
			active[tripId] = true
		}
	}
	return active
}

// departsWithin returns true if any stop departs in [start, end)
func departsWithin(stops []gtfs.ScheduledStop, start time.Time, end time.Time) bool {
	for _, stop := range stops {
		if !stop.HasDeparture() {
			continue
		}
		if !stop.DepartureDateTime.Before(start) && stop.DepartureDateTime.Before(end) {
			return true
		}
	}
	return false
}

// firstAndLast finds the stops marked first and last, either is nil when the trip has no such stop
func firstAndLast(stops []gtfs.ScheduledStop) (first *gtfs.ScheduledStop, last *gtfs.ScheduledStop) {
	for i := range stops {
		if stops[i].IsFirst {
			first = &stops[i]
		}
		if stops[i].IsLast {
			last = &stops[i]
		}
	}
	return first, last
}

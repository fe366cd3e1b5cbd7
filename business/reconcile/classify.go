package reconcile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/OpenTransitTools/delayreport/business/data/gtfsrt"
)

// ObservationSource provides the latest real time observation for a trip
type ObservationSource interface {
	Get(tripId string) (gtfsrt.Observation, bool)
}

// OnTime is an active trip whose next departure is running within the delay threshold
type OnTime struct {
	TripId       string `json:"trip_id"`
	DelaySeconds int    `json:"delay_seconds"`
}

// Delayed is an active trip expected to depart its next stop at least the delay threshold late
type Delayed struct {
	TripId             string     `json:"trip_id"`
	RouteId            string     `json:"route_id"`
	NextStopId         string     `json:"next_stop_id"`
	DelayMinutes       float64    `json:"delay_minutes"`
	VehicleId          string     `json:"vehicle_id"`
	ReportTimestamp    *time.Time `json:"report_timestamp"`
	ScheduledDeparture time.Time  `json:"scheduled_departure"`
	ExpectedDeparture  time.Time  `json:"expected_departure"`
}

// Missing is an active trip the feed has no report for, part way along its route
type Missing struct {
	TripId              string    `json:"trip_id"`
	RouteId             string    `json:"route_id"`
	Headsign            string    `json:"headsign"`
	ClosestStopId       string    `json:"closest_stop_id"`
	ClosestStopSequence int       `json:"closest_stop_sequence"`
	ScheduledDeparture  time.Time `json:"scheduled_departure"`
}

// Report holds the classification of every active trip in a cycle. A trip appears in at most one list
type Report struct {
	Delayed []Delayed
	Missing []Missing
	OnTime  []OnTime
}

// FormatError is returned when a route_id can't be ordered numerically
type FormatError struct {
	RouteId string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("route_id %q is not numeric: %v", e.RouteId, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Classify compares each active trip against its observation.
// Observed trips are Delayed when the next stop departure is at least thresholdMinutes behind schedule, otherwise
// OnTime. Observed trips with no next stop departure, or whose next stop isn't exactly one scheduled departure on the
// trip are skipped. Trips without an observation are Missing when the scheduled stop closest in time to now is neither the
// first nor the last stop; otherwise the trip is assumed not yet started or already finished.
func Classify(schedule *gtfs.Schedule,
	observations ObservationSource,
	activeTripIds map[string]bool,
	now time.Time,
	thresholdMinutes float64) Report {

	report := Report{
		Delayed: make([]Delayed, 0),
		Missing: make([]Missing, 0),
		OnTime:  make([]OnTime, 0),
	}
	thresholdSeconds := thresholdMinutes * 60

	for _, tripId := range sortedTripIds(activeTripIds) {
		trip, present := schedule.Trip(tripId)
		if !present {
			continue
		}
		stops := schedule.StopsForTrip(tripId)

		observation, observed := observations.Get(tripId)
		if !observed {
			if missing, ok := findMissing(trip, stops, now); ok {
				report.Missing = append(report.Missing, missing)
			}
			continue
		}

		if observation.NextStopDeparture == nil {
			continue
		}
		scheduled := findStop(stops, observation.NextStopId)
		if !scheduled.HasDeparture() {
			continue
		}
		delay := observation.NextStopDeparture.Sub(*scheduled.DepartureDateTime).Seconds()
		if delay >= thresholdSeconds {
			report.Delayed = append(report.Delayed, Delayed{
				TripId:             tripId,
				RouteId:            routeIdFor(trip, observation),
				NextStopId:         observation.NextStopId,
				DelayMinutes:       delay / 60,
				VehicleId:          observation.VehicleId,
				ReportTimestamp:    observation.Timestamp,
				ScheduledDeparture: *scheduled.DepartureDateTime,
				ExpectedDeparture:  *observation.NextStopDeparture,
			})
		} else {
			report.OnTime = append(report.OnTime, OnTime{TripId: tripId, DelaySeconds: int(math.Round(delay))})
		}
	}
	return report
}

func sortedTripIds(tripIds map[string]bool) []string {
	result := make([]string, 0, len(tripIds))
	for tripId, active := range tripIds {
		if active {
			result = append(result, tripId)
		}
	}
	sort.Strings(result)
	return result
}

// routeIdFor prefers the scheduled route, the feed's route_id is used only if the schedule has none
func routeIdFor(trip gtfs.Trip, observation gtfsrt.Observation) string {
	if len(trip.RouteId) > 0 {
		return trip.RouteId
	}
	return observation.RouteId
}

// findStop returns the stop on the trip with stopId.
// returns nil if the trip doesn't visit stopId, or visits it more than once as loop routes do at their terminus
func findStop(stops []gtfs.ScheduledStop, stopId string) *gtfs.ScheduledStop {
	var found *gtfs.ScheduledStop
	for i := range stops {
		if stops[i].StopId != stopId {
			continue
		}
		if found != nil {
			return nil
		}
		found = &stops[i]
	}
	return found
}

// closestStop returns the stop whose departure is nearest to now. On a tie the later stop wins.
// returns nil if no stop has a departure
func closestStop(stops []gtfs.ScheduledStop, now time.Time) *gtfs.ScheduledStop {
	var closest *gtfs.ScheduledStop
	var closestDistance time.Duration
	for i := range stops {
		if !stops[i].HasDeparture() {
			continue
		}
		distance := stops[i].DepartureDateTime.Sub(now)
		if distance < 0 {
			distance = -distance
		}
		if closest == nil || distance <= closestDistance {
			closest = &stops[i]
			closestDistance = distance
		}
	}
	return closest
}

// findMissing reports trip as Missing when its closest stop to now is neither first nor last
func findMissing(trip gtfs.Trip, stops []gtfs.ScheduledStop, now time.Time) (Missing, bool) {
	closest := closestStop(stops, now)
	if closest == nil || closest.IsFirst || closest.IsLast {
		return Missing{}, false
	}
	return Missing{
		TripId:              trip.TripId,
		RouteId:             trip.RouteId,
		Headsign:            trip.Headsign(),
		ClosestStopId:       closest.StopId,
		ClosestStopSequence: closest.StopSequence,
		ScheduledDeparture:  *closest.DepartureDateTime,
	}, true
}

// SortByRoute orders report's Delayed and Missing entries ascending by the integer value of their route_id.
// Entries with equal route ids keep their order. returns *FormatError if any route_id is not an integer, in which
// case report is left unchanged
func SortByRoute(report *Report) error {
	delayed, err := sortByRoute(report.Delayed, func(d Delayed) string { return d.RouteId })
	if err != nil {
		return err
	}
	missing, err := sortByRoute(report.Missing, func(m Missing) string { return m.RouteId })
	if err != nil {
		return err
	}
	report.Delayed = delayed
	report.Missing = missing
	return nil
}

type routeKeyed[T any] struct {
	key   int
	entry T
}

func sortByRoute[T any](entries []T, routeId func(T) string) ([]T, error) {
	keyed := make([]routeKeyed[T], len(entries))
	for i, entry := range entries {
		key, err := routeNumber(routeId(entry))
		if err != nil {
			return nil, err
		}
		keyed[i] = routeKeyed[T]{key: key, entry: entry}
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].key < keyed[j].key
	})
	result := make([]T, len(keyed))
	for i := range keyed {
		result[i] = keyed[i].entry
	}
	return result, nil
}

func routeNumber(routeId string) (int, error) {
	key, err := strconv.Atoi(strings.TrimSpace(routeId))
	if err != nil {
		return 0, &FormatError{RouteId: routeId, Err: err}
	}
	return key, nil
}

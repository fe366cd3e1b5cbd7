package gtfs

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnknownStop is wrapped by Schedule.StopName when the stop_id isn't in the schedule
var ErrUnknownStop = errors.New("unknown stop_id")

// ScheduleRecords holds the raw records read from a schedule source, before they are placed on a service day
type ScheduleRecords struct {
	Trips         []Trip
	Stops         []Stop
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
}

// Schedule is a read only, in memory gtfs schedule with every departure converted to an absolute time on a
// single service day. It is never modified after NewSchedule returns.
type Schedule struct {
	source     string
	serviceDay time.Time
	trips      map[string]Trip
	tripIds    []string
	stopTimes  map[string][]ScheduledStop
	stopNames  map[string]string
	calendar   serviceCalendar
}

// NewSchedule builds a Schedule from records, anchoring departures to serviceDay midnight.
// stop times are ordered by stop_sequence per trip, the stop_sequence 1 row is marked first and the highest
// stop_sequence row is marked last.
// returns *LoadError for duplicate trip ids, stop times on unknown trips or repeated stop_sequence values in a trip
func NewSchedule(source string, serviceDay time.Time, records ScheduleRecords) (*Schedule, error) {
	serviceDay = ServiceDayMidnight(serviceDay)
	s := Schedule{
		source:     source,
		serviceDay: serviceDay,
		trips:      make(map[string]Trip, len(records.Trips)),
		tripIds:    make([]string, 0, len(records.Trips)),
		stopTimes:  make(map[string][]ScheduledStop, len(records.Trips)),
		stopNames:  make(map[string]string, len(records.Stops)),
		calendar:   makeServiceCalendar(records.Calendars, records.CalendarDates),
	}

	for _, trip := range records.Trips {
		if _, present := s.trips[trip.TripId]; present {
			return nil, &LoadError{Source: source, File: "trips.txt", Err: fmt.Errorf("duplicate trip_id %s", trip.TripId)}
		}
		s.trips[trip.TripId] = trip
		s.tripIds = append(s.tripIds, trip.TripId)
	}
	sort.Strings(s.tripIds)

	for _, stop := range records.Stops {
		s.stopNames[stop.StopId] = stop.StopName
	}

	for _, stopTime := range records.StopTimes {
		if _, present := s.trips[stopTime.TripId]; !present {
			return nil, &LoadError{Source: source, File: "stop_times.txt",
				Err: fmt.Errorf("stop_time references unknown trip_id %s", stopTime.TripId)}
		}
		scheduledStop := ScheduledStop{
			StopTime: stopTime,
			IsFirst:  stopTime.StopSequence == 1,
		}
		if stopTime.DepartureTime != nil {
			departure := MakeScheduleTime(serviceDay, *stopTime.DepartureTime)
			scheduledStop.DepartureDateTime = &departure
		}
		s.stopTimes[stopTime.TripId] = append(s.stopTimes[stopTime.TripId], scheduledStop)
	}

	for tripId, stops := range s.stopTimes {
		sort.SliceStable(stops, func(i, j int) bool {
			return stops[i].StopSequence < stops[j].StopSequence
		})
		for i := 1; i < len(stops); i++ {
			if stops[i].StopSequence == stops[i-1].StopSequence {
				return nil, &LoadError{Source: source, File: "stop_times.txt",
					Err: fmt.Errorf("trip_id %s repeats stop_sequence %d", tripId, stops[i].StopSequence)}
			}
		}
		stops[len(stops)-1].IsLast = true
	}

	return &s, nil
}

// Source describes where the schedule was loaded from
func (s *Schedule) Source() string {
	return s.source
}

// ServiceDay returns the midnight every departure in the schedule is anchored to
func (s *Schedule) ServiceDay() time.Time {
	return s.serviceDay
}

// TripIds returns every trip_id in the schedule in sorted order
func (s *Schedule) TripIds() []string {
	result := make([]string, len(s.tripIds))
	copy(result, s.tripIds)
	return result
}

// Trip returns the trip with tripId, false if the schedule has no such trip
func (s *Schedule) Trip(tripId string) (Trip, bool) {
	trip, present := s.trips[tripId]
	return trip, present
}

// StopsForTrip returns the trip's ScheduledStops ordered by stop_sequence.
// The returned slice is a copy
func (s *Schedule) StopsForTrip(tripId string) []ScheduledStop {
	stops := s.stopTimes[tripId]
	result := make([]ScheduledStop, len(stops))
	copy(result, stops)
	return result
}

// StopName returns the stop_name for stopId, wraps ErrUnknownStop if the stop isn't present
func (s *Schedule) StopName(stopId string) (string, error) {
	name, present := s.stopNames[stopId]
	if !present {
		return "", fmt.Errorf("%w: %s", ErrUnknownStop, stopId)
	}
	return name, nil
}

// HasServiceCalendar returns true if calendar.txt or calendar_dates.txt records were loaded
func (s *Schedule) HasServiceCalendar() bool {
	return !s.calendar.isEmpty()
}

// ServiceActiveOn returns true if the service calendar has serviceId running on day
func (s *Schedule) ServiceActiveOn(serviceId string, day time.Time) bool {
	return s.calendar.activeOn(serviceId, day)
}

// TripCount returns the number of trips in the schedule
func (s *Schedule) TripCount() int {
	return len(s.trips)
}

// StopTimeCount returns the number of scheduled stops across all trips
func (s *Schedule) StopTimeCount() int {
	count := 0
	for _, stops := range s.stopTimes {
		count += len(stops)
	}
	return count
}

// String implements Stringer interface for Schedule
func (s *Schedule) String() string {
	return fmt.Sprintf("Schedule source:%s, serviceDay:%s, trips:%d, stopTimes:%d, stops:%d",
		s.source, formatTime(&s.serviceDay), s.TripCount(), s.StopTimeCount(), len(s.stopNames))
}

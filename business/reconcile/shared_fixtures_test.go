package reconcile

import (
	"testing"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/OpenTransitTools/delayreport/business/data/gtfsrt"
)

func intPtr(i int) *int {
	return &i
}

func timePtr(t time.Time) *time.Time {
	return &t
}

type testStop struct {
	sequence  int
	stopId    string
	departure *int
}

type testTrip struct {
	tripId    string
	routeId   string
	serviceId string
	headsign  string
	stops     []testStop
}

// epochDay places schedule seconds directly on unix seconds
var epochDay = time.Unix(0, 0).UTC()

func at(seconds int) time.Time {
	return epochDay.Add(time.Duration(seconds) * time.Second)
}

func buildTestSchedule(t *testing.T, serviceDay time.Time, calendars []gtfs.Calendar, trips ...testTrip) *gtfs.Schedule {
	records := gtfs.ScheduleRecords{Calendars: calendars}
	seenStops := make(map[string]bool)
	for _, trip := range trips {
		headsign := trip.headsign
		serviceId := trip.serviceId
		if serviceId == "" {
			serviceId = "W"
		}
		records.Trips = append(records.Trips, gtfs.Trip{
			TripId:       trip.tripId,
			RouteId:      trip.routeId,
			ServiceId:    serviceId,
			TripHeadsign: &headsign,
		})
		for _, stop := range trip.stops {
			records.StopTimes = append(records.StopTimes, gtfs.StopTime{
				TripId:        trip.tripId,
				StopSequence:  stop.sequence,
				StopId:        stop.stopId,
				DepartureTime: stop.departure,
			})
			if !seenStops[stop.stopId] {
				seenStops[stop.stopId] = true
				records.Stops = append(records.Stops, gtfs.Stop{StopId: stop.stopId, StopName: "Stop " + stop.stopId})
			}
		}
	}
	schedule, err := gtfs.NewSchedule("test", serviceDay, records)
	if err != nil {
		t.Fatalf("unable to build test schedule: %v", err)
	}
	return schedule
}

// testObservations implements ObservationSource
type testObservations map[string]gtfsrt.Observation

func (o testObservations) Get(tripId string) (gtfsrt.Observation, bool) {
	observation, present := o[tripId]
	return observation, present
}

func twoStopTrip(tripId string, routeId string, first int, last int) testTrip {
	return testTrip{
		tripId:  tripId,
		routeId: routeId,
		stops: []testStop{
			{sequence: 1, stopId: "A", departure: intPtr(first)},
			{sequence: 2, stopId: "B", departure: intPtr(last)},
		},
	}
}

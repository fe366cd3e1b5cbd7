package reconcile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/OpenTransitTools/delayreport/business/data/gtfsrt"
	"github.com/matryer/is"
)

func threeStopTrip(middle int) testTrip {
	return testTrip{
		tripId:   "T1",
		routeId:  "22",
		headsign: "Downtown",
		stops: []testStop{
			{sequence: 1, stopId: "A", departure: intPtr(1000)},
			{sequence: 2, stopId: "B", departure: intPtr(middle)},
			{sequence: 3, stopId: "C", departure: intPtr(2000)},
		},
	}
}

func TestClassify_missing(t *testing.T) {
	tests := []struct {
		name        string
		trip        testTrip
		now         int
		wantMissing []Missing
	}{
		{
			name:        "closest stop is the last stop",
			trip:        twoStopTrip("T1", "22", 1000, 2000),
			now:         1500,
			wantMissing: []Missing{},
		},
		{
			name: "closest stop is a middle stop",
			trip: threeStopTrip(1500),
			now:  1500,
			wantMissing: []Missing{
				{
					TripId:              "T1",
					RouteId:             "22",
					Headsign:            "Downtown",
					ClosestStopId:       "B",
					ClosestStopSequence: 2,
					ScheduledDeparture:  at(1500),
				},
			},
		},
		{
			name:        "closest stop is the first stop, long before it departs",
			trip:        threeStopTrip(1500),
			now:         -50000,
			wantMissing: []Missing{},
		},
		{
			name:        "closest stop is the last stop, long after it departed",
			trip:        threeStopTrip(1500),
			now:         80000,
			wantMissing: []Missing{},
		},
		{
			name: "stops without departures are ignored",
			trip: testTrip{
				tripId:  "T1",
				routeId: "22",
				stops: []testStop{
					{sequence: 1, stopId: "A", departure: intPtr(1000)},
					{sequence: 2, stopId: "B"},
					{sequence: 3, stopId: "C", departure: intPtr(1600)},
					{sequence: 4, stopId: "D", departure: intPtr(2000)},
				},
			},
			now: 1400,
			wantMissing: []Missing{
				{
					TripId:              "T1",
					RouteId:             "22",
					ClosestStopId:       "C",
					ClosestStopSequence: 3,
					ScheduledDeparture:  at(1600),
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := buildTestSchedule(t, epochDay, nil, tt.trip)
			// classify is given the active set directly so now may fall outside the trip
			report := Classify(schedule, testObservations{}, map[string]bool{"T1": true}, at(tt.now), 3)
			if !reflect.DeepEqual(report.Missing, tt.wantMissing) {
				t.Errorf("Classify() missing = %+v, want %+v", report.Missing, tt.wantMissing)
			}
			if len(report.Delayed) != 0 || len(report.OnTime) != 0 {
				t.Errorf("Classify() reported unobserved trip as observed: %+v", report)
			}
		})
	}
}

func TestClassify_observed(t *testing.T) {
	reportedAt := timePtr(at(1400))
	tests := []struct {
		name             string
		trip             *testTrip
		observation      gtfsrt.Observation
		thresholdMinutes float64
		wantDelayed      []Delayed
		wantOnTime       []OnTime
	}{
		{
			name: "two minutes late with a one minute threshold",
			observation: gtfsrt.Observation{
				TripId:            "T1",
				NextStopId:        "B",
				NextStopDeparture: timePtr(at(1620)),
				VehicleId:         "7001",
				Timestamp:         reportedAt,
			},
			thresholdMinutes: 1,
			wantDelayed: []Delayed{
				{
					TripId:             "T1",
					RouteId:            "22",
					NextStopId:         "B",
					DelayMinutes:       2.0,
					VehicleId:          "7001",
					ReportTimestamp:    reportedAt,
					ScheduledDeparture: at(1500),
					ExpectedDeparture:  at(1620),
				},
			},
			wantOnTime: []OnTime{},
		},
		{
			name: "exactly at the threshold is delayed",
			observation: gtfsrt.Observation{
				TripId:            "T1",
				NextStopId:        "B",
				NextStopDeparture: timePtr(at(1800)),
				VehicleId:         "7001",
			},
			thresholdMinutes: 5,
			wantDelayed: []Delayed{
				{
					TripId:             "T1",
					RouteId:            "22",
					NextStopId:         "B",
					DelayMinutes:       5.0,
					VehicleId:          "7001",
					ScheduledDeparture: at(1500),
					ExpectedDeparture:  at(1800),
				},
			},
			wantOnTime: []OnTime{},
		},
		{
			name: "one second under the threshold is on time",
			observation: gtfsrt.Observation{
				TripId:            "T1",
				NextStopId:        "B",
				NextStopDeparture: timePtr(at(1799)),
			},
			thresholdMinutes: 5,
			wantDelayed:      []Delayed{},
			wantOnTime:       []OnTime{{TripId: "T1", DelaySeconds: 299}},
		},
		{
			name: "running early is on time",
			observation: gtfsrt.Observation{
				TripId:            "T1",
				NextStopId:        "B",
				NextStopDeparture: timePtr(at(1440)),
			},
			thresholdMinutes: 3,
			wantDelayed:      []Delayed{},
			wantOnTime:       []OnTime{{TripId: "T1", DelaySeconds: -60}},
		},
		{
			name: "no departure in the feed is skipped",
			observation: gtfsrt.Observation{
				TripId:     "T1",
				NextStopId: "B",
			},
			thresholdMinutes: 3,
			wantDelayed:      []Delayed{},
			wantOnTime:       []OnTime{},
		},
		{
			name: "next stop visited twice on a loop trip is skipped",
			trip: &testTrip{
				tripId:  "T1",
				routeId: "22",
				stops: []testStop{
					{sequence: 1, stopId: "TC", departure: intPtr(1000)},
					{sequence: 2, stopId: "M", departure: intPtr(1500)},
					{sequence: 3, stopId: "TC", departure: intPtr(2000)},
				},
			},
			observation: gtfsrt.Observation{
				TripId:            "T1",
				NextStopId:        "TC",
				NextStopDeparture: timePtr(at(2010)),
				VehicleId:         "7001",
			},
			thresholdMinutes: 3,
			wantDelayed:      []Delayed{},
			wantOnTime:       []OnTime{},
		},
		{
			name: "next stop not on the trip is skipped",
			observation: gtfsrt.Observation{
				TripId:            "T1",
				NextStopId:        "Z",
				NextStopDeparture: timePtr(at(9000)),
			},
			thresholdMinutes: 3,
			wantDelayed:      []Delayed{},
			wantOnTime:       []OnTime{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := threeStopTrip(1500)
			if tt.trip != nil {
				trip = *tt.trip
			}
			schedule := buildTestSchedule(t, epochDay, nil, trip)
			observations := testObservations{"T1": tt.observation}
			report := Classify(schedule, observations, map[string]bool{"T1": true}, at(1500), tt.thresholdMinutes)
			if !reflect.DeepEqual(report.Delayed, tt.wantDelayed) {
				t.Errorf("Classify() delayed = %+v, want %+v", report.Delayed, tt.wantDelayed)
			}
			if !reflect.DeepEqual(report.OnTime, tt.wantOnTime) {
				t.Errorf("Classify() onTime = %+v, want %+v", report.OnTime, tt.wantOnTime)
			}
			if len(report.Missing) != 0 {
				t.Errorf("Classify() reported observed trip as missing: %+v", report.Missing)
			}
		})
	}
}

func TestClassify_scheduledStopWithoutDepartureIsSkipped(t *testing.T) {
	is := is.New(t)
	trip := testTrip{
		tripId:  "T1",
		routeId: "22",
		stops: []testStop{
			{sequence: 1, stopId: "A", departure: intPtr(1000)},
			{sequence: 2, stopId: "B"},
			{sequence: 3, stopId: "C", departure: intPtr(2000)},
		},
	}
	schedule := buildTestSchedule(t, epochDay, nil, trip)
	observations := testObservations{"T1": {TripId: "T1", NextStopId: "B", NextStopDeparture: timePtr(at(5000))}}
	report := Classify(schedule, observations, map[string]bool{"T1": true}, at(1500), 3)
	is.Equal(len(report.Delayed), 0)
	is.Equal(len(report.OnTime), 0)
	is.Equal(len(report.Missing), 0)
}

func TestClassify_tripInAtMostOneBucket(t *testing.T) {
	is := is.New(t)
	trips := make([]testTrip, 0)
	observations := testObservations{}
	active := make(map[string]bool)
	for i, tripId := range []string{"late", "early", "gone", "untracked"} {
		trip := threeStopTrip(1500)
		trip.tripId = tripId
		trip.routeId = string(rune('1' + i))
		trips = append(trips, trip)
		active[tripId] = true
	}
	observations["late"] = gtfsrt.Observation{TripId: "late", NextStopId: "B", NextStopDeparture: timePtr(at(2500))}
	observations["early"] = gtfsrt.Observation{TripId: "early", NextStopId: "B", NextStopDeparture: timePtr(at(1500))}
	schedule := buildTestSchedule(t, epochDay, nil, trips...)

	report := Classify(schedule, observations, active, at(1500), 3)
	seen := make(map[string]int)
	for _, d := range report.Delayed {
		seen[d.TripId]++
	}
	for _, m := range report.Missing {
		seen[m.TripId]++
	}
	for _, o := range report.OnTime {
		seen[o.TripId]++
	}
	for tripId, count := range seen {
		is.True(count == 1) // trip appears once
		is.True(active[tripId])
	}
	is.Equal(len(report.Delayed), 1)
	is.Equal(len(report.OnTime), 1)
	is.Equal(len(report.Missing), 2)
}

func TestClassify_inactiveTripsIgnored(t *testing.T) {
	is := is.New(t)
	schedule := buildTestSchedule(t, epochDay, nil, threeStopTrip(1500))
	report := Classify(schedule, testObservations{}, map[string]bool{"T1": false, "unknown": true}, at(1500), 3)
	is.Equal(len(report.Missing), 0)
}

func TestSortByRoute(t *testing.T) {
	is := is.New(t)
	report := Report{
		Delayed: []Delayed{
			{TripId: "a", RouteId: "22"},
			{TripId: "b", RouteId: "3"},
			{TripId: "c", RouteId: "100"},
			{TripId: "d", RouteId: "3"},
		},
		Missing: []Missing{
			{TripId: "e", RouteId: "100"},
			{TripId: "f", RouteId: "20"},
		},
	}
	is.NoErr(SortByRoute(&report))

	gotDelayed := make([]string, 0)
	for _, d := range report.Delayed {
		gotDelayed = append(gotDelayed, d.RouteId+"/"+d.TripId)
	}
	is.Equal(gotDelayed, []string{"3/b", "3/d", "22/a", "100/c"}) // numeric order, ties keep input order
	is.Equal(report.Missing[0].RouteId, "20")
	is.Equal(report.Missing[1].RouteId, "100")
}

func TestSortByRoute_nonNumericRoute(t *testing.T) {
	is := is.New(t)
	report := Report{
		Delayed: []Delayed{{TripId: "a", RouteId: "22"}, {TripId: "b", RouteId: "3"}},
		Missing: []Missing{{TripId: "c", RouteId: "MAX Red"}},
	}
	err := SortByRoute(&report)
	var formatError *FormatError
	is.True(errors.As(err, &formatError))
	is.Equal(formatError.RouteId, "MAX Red")
	is.Equal(report.Delayed[0].RouteId, "22") // report is unchanged on failure
}

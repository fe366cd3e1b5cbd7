// Package gtfsrt decodes gtfs-realtime trip update feeds into per trip observations
package gtfsrt

import (
	"fmt"
	"sort"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// Observation is the most recent real time report for a trip. Only the first stop_time_update of the report is kept,
// which is the stop the vehicle will depart from next.
type Observation struct {
	TripId     string `json:"trip_id"`
	RouteId    string `json:"route_id"`
	NextStopId string `json:"next_stop_id"`
	// NextStopDeparture is nil when the feed has no departure time for the next stop
	NextStopDeparture *time.Time `json:"next_stop_departure"`
	VehicleId         string     `json:"vehicle_id"`
	// DelaySeconds is the delay as reported by the producer, nil when absent
	DelaySeconds *int       `json:"delay_seconds"`
	Timestamp    *time.Time `json:"timestamp"`
}

// String implements Stringer interface for Observation
func (o Observation) String() string {
	return fmt.Sprintf("Observation trip:%s, route:%s, nextStop:%s, departure:%s, vehicle:%s",
		o.TripId, o.RouteId, o.NextStopId, formatTime(o.NextStopDeparture), o.VehicleId)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "nil"
	}
	return t.Format(time.RFC3339)
}

// ObservationStore holds one Observation per trip_id from a single feed message.
// A new store is built for every feed retrieved, nothing carries over between feeds
type ObservationStore struct {
	observations  map[string]Observation
	feedTimestamp *time.Time
}

// NewObservationStore builds an ObservationStore from the trip updates in feed.
// Entities without a trip_id or marked deleted are ignored. When more than one entity reports the same trip
// the later entity in the feed replaces the earlier one.
func NewObservationStore(feed *gtfsrtpb.FeedMessage) *ObservationStore {
	store := ObservationStore{
		observations: make(map[string]Observation),
	}
	if feed == nil {
		return &store
	}
	if feed.Header != nil && feed.Header.Timestamp != nil {
		ts := unixTime(int64(*feed.Header.Timestamp))
		store.feedTimestamp = &ts
	}
	for _, entity := range feed.Entity {
		if entity.GetIsDeleted() {
			continue
		}
		observation, ok := makeObservation(entity.TripUpdate, store.feedTimestamp)
		if !ok {
			continue
		}
		store.observations[observation.TripId] = observation
	}
	return &store
}

// makeObservation pulls the fields used from a TripUpdate, returns false if the update has no trip_id
func makeObservation(tripUpdate *gtfsrtpb.TripUpdate, feedTimestamp *time.Time) (Observation, bool) {
	if tripUpdate == nil || tripUpdate.Trip == nil || tripUpdate.Trip.TripId == nil {
		return Observation{}, false
	}
	observation := Observation{
		TripId:    tripUpdate.Trip.GetTripId(),
		RouteId:   tripUpdate.Trip.GetRouteId(),
		VehicleId: tripUpdate.GetVehicle().GetId(),
		Timestamp: feedTimestamp,
	}
	if tripUpdate.Delay != nil {
		delay := int(*tripUpdate.Delay)
		observation.DelaySeconds = &delay
	}
	if tripUpdate.Timestamp != nil {
		ts := unixTime(int64(*tripUpdate.Timestamp))
		observation.Timestamp = &ts
	}
	if len(tripUpdate.StopTimeUpdate) > 0 {
		next := tripUpdate.StopTimeUpdate[0]
		observation.NextStopId = next.GetStopId()
		if next.Departure != nil && next.Departure.Time != nil {
			departure := unixTime(*next.Departure.Time)
			observation.NextStopDeparture = &departure
		}
	}
	return observation, true
}

func unixTime(seconds int64) time.Time {
	return time.Unix(seconds, 0)
}

// Get returns the Observation for tripId, false if the feed didn't report the trip
func (s *ObservationStore) Get(tripId string) (Observation, bool) {
	observation, present := s.observations[tripId]
	return observation, present
}

// Len returns the number of trips observed
func (s *ObservationStore) Len() int {
	return len(s.observations)
}

// TripIds returns the observed trip ids in sorted order
func (s *ObservationStore) TripIds() []string {
	result := make([]string, 0, len(s.observations))
	for tripId := range s.observations {
		result = append(result, tripId)
	}
	sort.Strings(result)
	return result
}

// FeedTimestamp returns the timestamp from the feed header, nil if the feed had none
func (s *ObservationStore) FeedTimestamp() *time.Time {
	return s.feedTimestamp
}

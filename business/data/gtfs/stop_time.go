package gtfs

import (
	"time"
)

// StopTime contains a record from a gtfs stop_times.txt file
// represents a scheduled departure at a stop. DepartureTime is seconds past the service day's midnight
// and is nil when the source left departure_time empty
type StopTime struct {
	TripId        string `db:"trip_id" json:"trip_id"`
	StopSequence  int    `db:"stop_sequence" json:"stop_sequence"`
	StopId        string `db:"stop_id" json:"stop_id"`
	DepartureTime *int   `db:"departure_time" json:"departure_time"`
}

// ScheduledStop is a StopTime placed on a service day
type ScheduledStop struct {
	StopTime
	// IsFirst is true for the row with stop_sequence 1
	IsFirst bool `json:"is_first"`
	// IsLast is true for the row with the highest stop_sequence on the trip
	IsLast            bool       `json:"is_last"`
	DepartureDateTime *time.Time `json:"departure_date_time"`
}

// HasDeparture returns true if the stop has a scheduled departure
func (s *ScheduledStop) HasDeparture() bool {
	return s != nil && s.DepartureDateTime != nil
}

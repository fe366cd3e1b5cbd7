package gtfs

// Trip contains data from a gtfs trip definition in a trips.txt file
type Trip struct {
	TripId       string  `db:"trip_id" json:"trip_id"`
	RouteId      string  `db:"route_id" json:"route_id"`
	ServiceId    string  `db:"service_id" json:"service_id"`
	TripHeadsign *string `db:"trip_headsign" json:"trip_headsign"`
}

// Headsign returns TripHeadsign or an empty string when the trip has none
func (t *Trip) Headsign() string {
	if t.TripHeadsign == nil {
		return ""
	}
	return *t.TripHeadsign
}

// Stop contains the fields used from a gtfs stops.txt record
type Stop struct {
	StopId   string `db:"stop_id" json:"stop_id"`
	StopName string `db:"stop_name" json:"stop_name"`
}

package gtfsmanager

import (
	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
)

// tripRowReader implements gtfsRowReader interface for gtfs.Trip
type tripRowReader struct {
}

func (r *tripRowReader) requiredColumns() []string {
	return []string{"trip_id", "route_id", "service_id"}
}

func (r *tripRowReader) addRow(parser *gtfsFileParser, records *gtfs.ScheduleRecords) error {
	trip, err := buildTrip(parser)
	if err != nil {
		return err
	}
	records.Trips = append(records.Trips, *trip)
	return nil
}

func buildTrip(parser *gtfsFileParser) (*gtfs.Trip, error) {
	trip := gtfs.Trip{
		TripId:       parser.getString("trip_id", false),
		RouteId:      parser.getString("route_id", false),
		ServiceId:    parser.getString("service_id", false),
		TripHeadsign: parser.getStringPointer("trip_headsign", true),
	}
	return &trip, parser.getError()
}

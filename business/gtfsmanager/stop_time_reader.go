package gtfsmanager

import (
	"fmt"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
)

// stopTimeRowReader implements gtfsRowReader interface for gtfs.StopTime
type stopTimeRowReader struct {
}

func (r *stopTimeRowReader) requiredColumns() []string {
	return []string{"trip_id", "stop_sequence", "stop_id", "departure_time"}
}

func (r *stopTimeRowReader) addRow(parser *gtfsFileParser, records *gtfs.ScheduleRecords) error {
	stopTime, err := buildStopTime(parser)
	if err != nil {
		return err
	}
	records.StopTimes = append(records.StopTimes, *stopTime)
	return nil
}

// buildStopTime reads a stop_times.txt row. departure_time may be empty on stops that aren't timepoints
func buildStopTime(parser *gtfsFileParser) (*gtfs.StopTime, error) {
	stopTime := gtfs.StopTime{
		TripId:        parser.getString("trip_id", false),
		StopSequence:  parser.getInt("stop_sequence", false),
		StopId:        parser.getString("stop_id", false),
		DepartureTime: parser.getGTFSTimePointer("departure_time", true),
	}
	if err := parser.getError(); err != nil {
		return nil, err
	}
	if stopTime.StopSequence < 1 {
		parser.addParseError(fmt.Errorf("stop_sequence must be positive, found %d", stopTime.StopSequence))
		return nil, parser.getError()
	}
	return &stopTime, nil
}

package gtfsmanager

import (
	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
)

// stopRowReader implements gtfsRowReader interface for gtfs.Stop
type stopRowReader struct {
}

func (r *stopRowReader) requiredColumns() []string {
	return []string{"stop_id", "stop_name"}
}

func (r *stopRowReader) addRow(parser *gtfsFileParser, records *gtfs.ScheduleRecords) error {
	stop, err := buildStop(parser)
	if err != nil {
		return err
	}
	records.Stops = append(records.Stops, *stop)
	return nil
}

// buildStop reads a stops.txt row. stop_name may be empty for stations' generic nodes and boarding areas
func buildStop(parser *gtfsFileParser) (*gtfs.Stop, error) {
	stop := gtfs.Stop{
		StopId:   parser.getString("stop_id", false),
		StopName: parser.getString("stop_name", true),
	}
	return &stop, parser.getError()
}

package gtfsmanager

import (
	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
)

// calendarRowReader implements gtfsRowReader interface for gtfs.Calendar
type calendarRowReader struct {
}

func (r *calendarRowReader) requiredColumns() []string {
	return []string{"service_id", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"start_date", "end_date"}
}

func (r *calendarRowReader) addRow(parser *gtfsFileParser, records *gtfs.ScheduleRecords) error {
	calendar, err := buildCalendar(parser)
	if err != nil {
		return err
	}
	records.Calendars = append(records.Calendars, *calendar)
	return nil
}

func buildCalendar(parser *gtfsFileParser) (*gtfs.Calendar, error) {
	calendar := gtfs.Calendar{
		ServiceId: parser.getString("service_id", false),
		Monday:    parser.getInt("monday", false),
		Tuesday:   parser.getInt("tuesday", false),
		Wednesday: parser.getInt("wednesday", false),
		Thursday:  parser.getInt("thursday", false),
		Friday:    parser.getInt("friday", false),
		Saturday:  parser.getInt("saturday", false),
		Sunday:    parser.getInt("sunday", false),
		StartDate: parser.getGTFSDatePointer("start_date", false),
		EndDate:   parser.getGTFSDatePointer("end_date", false),
	}

	return &calendar, parser.getError()
}

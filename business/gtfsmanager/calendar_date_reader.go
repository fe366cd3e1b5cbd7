package gtfsmanager

import (
	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
)

// calendarDateRowReader implements gtfsRowReader interface for gtfs.CalendarDate
type calendarDateRowReader struct {
}

func (r *calendarDateRowReader) requiredColumns() []string {
	return []string{"service_id", "date", "exception_type"}
}

func (r *calendarDateRowReader) addRow(parser *gtfsFileParser, records *gtfs.ScheduleRecords) error {
	calendarDate, err := buildCalendarDate(parser)
	if err != nil {
		return err
	}
	records.CalendarDates = append(records.CalendarDates, *calendarDate)
	return nil
}

func buildCalendarDate(parser *gtfsFileParser) (*gtfs.CalendarDate, error) {
	calendarDate := gtfs.CalendarDate{
		ServiceId:     parser.getString("service_id", false),
		Date:          parser.getGTFSDate("date", false),
		ExceptionType: parser.getInt("exception_type", false),
	}
	return &calendarDate, parser.getError()
}

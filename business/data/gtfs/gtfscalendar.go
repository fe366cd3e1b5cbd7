package gtfs

import (
	"time"
)

// Calendar contains data from a record in a gtfs calendar.txt file
type Calendar struct {
	DataSetId int64  `db:"data_set_id"`
	ServiceId string `db:"service_id"`
	Monday    int
	Tuesday   int
	Wednesday int
	Thursday  int
	Friday    int
	Saturday  int
	Sunday    int
	StartDate *time.Time `db:"start_date"`
	EndDate   *time.Time `db:"end_date"`
}

// CalendarDate contains data from a record in a gtfs calendar_dates.txt file
type CalendarDate struct {
	DataSetId     int64  `db:"data_set_id"`
	ServiceId     string `db:"service_id"`
	Date          time.Time
	ExceptionType int `db:"exception_type"`
}

const (
	// ServiceAdded is the calendar_dates exception_type adding service on a date
	ServiceAdded = 1
	// ServiceRemoved is the calendar_dates exception_type removing service on a date
	ServiceRemoved = 2
)

// dateKey reduces t to a comparable YYYYMMDD integer, ignoring time of day and location
func dateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// runsOn returns true if the calendar's weekday flag for day is set and day falls between StartDate and EndDate
func (c *Calendar) runsOn(day time.Time) bool {
	key := dateKey(day)
	if c.StartDate != nil && key < dateKey(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && key > dateKey(*c.EndDate) {
		return false
	}
	var flag int
	switch day.Weekday() {
	case time.Monday:
		flag = c.Monday
	case time.Tuesday:
		flag = c.Tuesday
	case time.Wednesday:
		flag = c.Wednesday
	case time.Thursday:
		flag = c.Thursday
	case time.Friday:
		flag = c.Friday
	case time.Saturday:
		flag = c.Saturday
	case time.Sunday:
		flag = c.Sunday
	}
	return flag == 1
}

// serviceCalendar holds calendar.txt and calendar_dates.txt records keyed by service_id
type serviceCalendar struct {
	calendars     map[string]Calendar
	calendarDates map[string][]CalendarDate
}

func makeServiceCalendar(calendars []Calendar, calendarDates []CalendarDate) serviceCalendar {
	sc := serviceCalendar{
		calendars:     make(map[string]Calendar, len(calendars)),
		calendarDates: make(map[string][]CalendarDate),
	}
	for _, calendar := range calendars {
		sc.calendars[calendar.ServiceId] = calendar
	}
	for _, calendarDate := range calendarDates {
		sc.calendarDates[calendarDate.ServiceId] = append(sc.calendarDates[calendarDate.ServiceId], calendarDate)
	}
	return sc
}

func (sc *serviceCalendar) isEmpty() bool {
	return len(sc.calendars) == 0 && len(sc.calendarDates) == 0
}

// activeOn returns true if serviceId runs on day.
// calendar is consulted first, then calendar_date exceptions add or remove service
func (sc *serviceCalendar) activeOn(serviceId string, day time.Time) bool {
	active := false
	if calendar, present := sc.calendars[serviceId]; present {
		active = calendar.runsOn(day)
	}
	key := dateKey(day)
	for _, calendarDate := range sc.calendarDates[serviceId] {
		if dateKey(calendarDate.Date) != key {
			continue
		}
		if calendarDate.ExceptionType == ServiceAdded {
			active = true
		} else if calendarDate.ExceptionType == ServiceRemoved {
			active = false
		}
	}
	return active
}

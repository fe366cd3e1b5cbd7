package reconcile

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// HolidayCalendar holds the holidays observed by a transit agency
type HolidayCalendar struct {
	calendar *cal.BusinessCalendar
}

// NewHolidayCalendar builds a HolidayCalendar with the US federal holidays transit agencies commonly run
// reduced service on.
// TODO: read the observed holidays from the settings file so agencies outside the US can be served
func NewHolidayCalendar() *HolidayCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)
	return &HolidayCalendar{calendar: calendar}
}

// IsHoliday returns true if at is on an observed holiday
func (h *HolidayCalendar) IsHoliday(at time.Time) bool {
	_, observed, _ := h.calendar.IsHoliday(at)
	return observed
}

package reconcile

import (
	"fmt"
	"regexp"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
)

// ServiceFilter decides which scheduled trips are considered operating
type ServiceFilter struct {
	excludedRoutes map[string]bool
	// servicePattern must match service_id, nil matches everything
	servicePattern *regexp.Regexp
	// holidayServicePattern replaces servicePattern on holidays when set
	holidayServicePattern *regexp.Regexp
	holidays              *HolidayCalendar
	useServiceCalendar    bool
}

// FilterConfig holds the settings used to build a ServiceFilter
type FilterConfig struct {
	ExcludedRoutes        []string
	ServicePattern        string
	HolidayServicePattern string
	UseServiceCalendar    bool
	// Holidays is consulted only when HolidayServicePattern is set
	Holidays *HolidayCalendar
}

// NewServiceFilter builds a ServiceFilter, returns an error if either pattern isn't a valid regular expression
func NewServiceFilter(cfg FilterConfig) (*ServiceFilter, error) {
	filter := ServiceFilter{
		excludedRoutes:     make(map[string]bool, len(cfg.ExcludedRoutes)),
		holidays:           cfg.Holidays,
		useServiceCalendar: cfg.UseServiceCalendar,
	}
	for _, routeId := range cfg.ExcludedRoutes {
		filter.excludedRoutes[routeId] = true
	}
	var err error
	if filter.servicePattern, err = compilePattern(cfg.ServicePattern); err != nil {
		return nil, fmt.Errorf("invalid service pattern: %w", err)
	}
	if filter.holidayServicePattern, err = compilePattern(cfg.HolidayServicePattern); err != nil {
		return nil, fmt.Errorf("invalid holiday service pattern: %w", err)
	}
	return &filter, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if len(pattern) == 0 {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// RouteExcluded returns true if trips on routeId are never reported
func (f *ServiceFilter) RouteExcluded(routeId string) bool {
	return f.excludedRoutes[routeId]
}

// ServiceRuns returns true if trips with serviceId operate on day
func (f *ServiceFilter) ServiceRuns(schedule *gtfs.Schedule, serviceId string, day time.Time) bool {
	pattern := f.servicePattern
	if f.holidayServicePattern != nil && f.holidays != nil && f.holidays.IsHoliday(day) {
		pattern = f.holidayServicePattern
	}
	if pattern != nil && !pattern.MatchString(serviceId) {
		return false
	}
	if f.useServiceCalendar && schedule.HasServiceCalendar() {
		return schedule.ServiceActiveOn(serviceId, day)
	}
	return true
}

// Allows returns true if trip passes both route exclusion and the service filter on day
func (f *ServiceFilter) Allows(schedule *gtfs.Schedule, trip gtfs.Trip, day time.Time) bool {
	if f == nil {
		return true
	}
	return !f.RouteExcluded(trip.RouteId) && f.ServiceRuns(schedule, trip.ServiceId, day)
}

package reporter

import (
	"fmt"
	"os"
	"time"

	"github.com/OpenTransitTools/delayreport/business/reconcile"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// ScheduleSourceFiles reads the schedule from gtfs_path
	ScheduleSourceFiles = "files"
	// ScheduleSourceDatabase reads the schedule from the latest data set saved in the database
	ScheduleSourceDatabase = "database"
)

// NatsSettings configures publishing cycle summaries. Publishing is off when URL is empty
type NatsSettings struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject" validate:"required_with=URL"`
}

// Settings is the agency settings file. JSON files with the same keys are accepted
type Settings struct {
	GTFSPath              string       `yaml:"gtfs_path" validate:"required"`
	FeedURL               string       `yaml:"feed_url" validate:"required,url"`
	APIKey                string       `yaml:"api_key" validate:"required"`
	ScheduleSource        string       `yaml:"schedule_source" validate:"oneof=files database"`
	DelayThresholdMinutes float64      `yaml:"delay_threshold_minutes" validate:"gte=0"`
	PollPeriodSeconds     int          `yaml:"poll_period_seconds" validate:"gt=0"`
	FeedTimeoutSeconds    int          `yaml:"feed_timeout_seconds" validate:"gt=0"`
	Timezone              string       `yaml:"timezone"`
	ExcludedRoutes        []string     `yaml:"excluded_routes"`
	ServicePattern        string       `yaml:"service_pattern"`
	HolidayServicePattern string       `yaml:"holiday_service_pattern"`
	UseServiceCalendar    bool         `yaml:"use_service_calendar"`
	RollServiceDay        bool         `yaml:"roll_service_day"`
	ReportOnTime          bool         `yaml:"report_on_time"`
	Nats                  NatsSettings `yaml:"nats"`
}

// defaultSettings holds the values used for keys missing from the settings file
func defaultSettings() Settings {
	return Settings{
		ScheduleSource:        ScheduleSourceFiles,
		DelayThresholdMinutes: 3,
		PollPeriodSeconds:     120,
		FeedTimeoutSeconds:    30,
		Nats: NatsSettings{
			Subject: "delay-report",
		},
	}
}

// LoadSettings reads and validates the settings file at path
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("unable to read settings file: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes and validates settings, filling in defaults for missing keys
func ParseSettings(data []byte) (Settings, error) {
	settings := defaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("unable to parse settings: %w", err)
	}
	if err := validator.New().Struct(settings); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	if _, err := settings.Location(); err != nil {
		return Settings{}, err
	}
	if _, err := settings.ServiceFilter(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// PollPeriod is the time between the start of each poll cycle
func (s Settings) PollPeriod() time.Duration {
	return time.Duration(s.PollPeriodSeconds) * time.Second
}

// FeedTimeout limits how long retrieving the feed may take
func (s Settings) FeedTimeout() time.Duration {
	return time.Duration(s.FeedTimeoutSeconds) * time.Second
}

// Location returns the agency's time zone, the local time zone when Timezone is empty
func (s Settings) Location() (*time.Location, error) {
	if len(s.Timezone) == 0 {
		return time.Local, nil
	}
	location, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return location, nil
}

// ServiceFilter builds the reconcile.ServiceFilter described by the settings
func (s Settings) ServiceFilter() (*reconcile.ServiceFilter, error) {
	cfg := reconcile.FilterConfig{
		ExcludedRoutes:        s.ExcludedRoutes,
		ServicePattern:        s.ServicePattern,
		HolidayServicePattern: s.HolidayServicePattern,
		UseServiceCalendar:    s.UseServiceCalendar,
	}
	if len(s.HolidayServicePattern) > 0 {
		cfg.Holidays = reconcile.NewHolidayCalendar()
	}
	return reconcile.NewServiceFilter(cfg)
}

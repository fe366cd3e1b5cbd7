package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/OpenTransitTools/delayreport/business/data/gtfsrt"
	"github.com/OpenTransitTools/delayreport/business/reconcile"
)

// farewell is written to the report output when the loop is interrupted
const farewell = "Delay reporter stopped, goodbye"

// FeedFetcher retrieves the current trip update observations, implemented by *gtfsrt.FeedClient
type FeedFetcher interface {
	Fetch(ctx context.Context) (*gtfsrt.ObservationStore, error)
}

// ScheduleLoader loads the schedule for the service day containing serviceDay
type ScheduleLoader func(ctx context.Context, serviceDay time.Time) (*gtfs.Schedule, error)

// Config holds everything a Reporter needs. Publisher, Metrics, ReloadSchedule and Now are optional
type Config struct {
	Log            *log.Logger
	Out            io.Writer
	Settings       Settings
	Schedule       *gtfs.Schedule
	Feed           FeedFetcher
	Publisher      *SummaryPublisher
	Metrics        *Collector
	ReloadSchedule ScheduleLoader
	Now            func() time.Time
}

// Reporter runs poll cycles, writing a report of delayed and missing trips for each
type Reporter struct {
	log            *log.Logger
	out            io.Writer
	settings       Settings
	location       *time.Location
	filter         *reconcile.ServiceFilter
	schedule       *gtfs.Schedule
	feed           FeedFetcher
	publisher      *SummaryPublisher
	metrics        *Collector
	reloadSchedule ScheduleLoader
	now            func() time.Time
	warnedStaleDay bool
}

// NewReporter creates a Reporter from cfg
func NewReporter(cfg Config) (*Reporter, error) {
	if cfg.Log == nil || cfg.Out == nil || cfg.Schedule == nil || cfg.Feed == nil {
		return nil, errors.New("reporter requires a logger, an output, a schedule and a feed")
	}
	location, err := cfg.Settings.Location()
	if err != nil {
		return nil, err
	}
	filter, err := cfg.Settings.ServiceFilter()
	if err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reporter{
		log:            cfg.Log,
		out:            cfg.Out,
		settings:       cfg.Settings,
		location:       location,
		filter:         filter,
		schedule:       cfg.Schedule,
		feed:           cfg.Feed,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		reloadSchedule: cfg.ReloadSchedule,
		now:            now,
	}, nil
}

// RunDelayReportLoop runs a poll cycle every Settings.PollPeriod until a value arrives on shutdownSignal.
// A failed cycle is logged and the loop continues with the next one. Returns nil after writing a farewell line
func (r *Reporter) RunDelayReportLoop(shutdownSignal chan os.Signal) error {
	period := r.settings.PollPeriod()

	sleepChan := make(chan bool, 1)
	sleep := time.Duration(0) //sleep for zero seconds the first time

	for {

		go func(sleep time.Duration) {
			time.Sleep(sleep)
			sleepChan <- true
		}(sleep)

		select {
		case <-shutdownSignal:
			r.sayFarewell()
			return nil
		case <-sleepChan:
			break
		}

		// both cases may be ready at once after a zero sleep, a pending signal wins over more work
		select {
		case <-shutdownSignal:
			r.sayFarewell()
			return nil
		default:
		}

		// mark the time we start working
		start := time.Now()

		_, err := r.runCycle(context.Background(), r.now().In(r.location))
		if err != nil {
			r.log.Printf("poll cycle abandoned, error:%v\n", err)
			if r.metrics != nil {
				r.metrics.CycleErrors.Inc()
			}
		}

		workTook := time.Since(start)
		r.log.Printf("work took %s\n", fmtDuration(workTook))
		sleep = nextSleep(period, workTook)
	}
}

func (r *Reporter) sayFarewell() {
	r.log.Printf("Exiting on shutdown signal")
	_, err := fmt.Fprintln(r.out, farewell)
	if err != nil {
		r.log.Printf("unable to write farewell, error:%v", err)
	}
}

// nextSleep attempts to run the loop every period by subtracting the time it took to perform the work.
// If the work took longer than period there is no sleep at all
func nextSleep(period time.Duration, workTook time.Duration) time.Duration {
	if workTook >= period {
		return time.Duration(0)
	}
	return period - workTook
}

// runCycle fetches observations, classifies the trips active at now and writes the report
func (r *Reporter) runCycle(ctx context.Context, now time.Time) (reconcile.Report, error) {
	start := time.Now()
	r.checkServiceDay(ctx, now)

	observations, err := r.feed.Fetch(ctx)
	if err != nil {
		if r.metrics != nil {
			r.metrics.FetchErrors.Inc()
		}
		return reconcile.Report{}, err
	}
	r.log.Printf("loaded %d trip updates\n", observations.Len())

	activeTripIds := reconcile.SelectActive(r.schedule, r.filter, now)
	report := reconcile.Classify(r.schedule, observations, activeTripIds, now, r.settings.DelayThresholdMinutes)
	if err = reconcile.SortByRoute(&report); err != nil {
		return report, err
	}

	lines, err := FormatReport(r.schedule, report, now, r.settings.ReportOnTime)
	if err != nil {
		return report, err
	}
	for _, line := range lines {
		if _, err = fmt.Fprintln(r.out, line); err != nil {
			return report, fmt.Errorf("unable to write report: %w", err)
		}
	}
	r.log.Printf("%d active trips, %d delayed, %d missing, %d on time\n",
		len(activeTripIds), len(report.Delayed), len(report.Missing), len(report.OnTime))

	if r.publisher != nil {
		summary := makeCycleSummary(now, r.schedule.ServiceDay(), len(activeTripIds), report)
		if r.publisher.publish(summary) && r.metrics != nil {
			r.metrics.SummariesPublished.Inc()
		}
	}
	if r.metrics != nil {
		r.metrics.observeReport(len(activeTripIds), report, time.Since(start))
	}
	return report, nil
}

// checkServiceDay handles now having moved past the schedule's service day.
// With RollServiceDay the schedule is reloaded for the new day, otherwise a warning is logged once
func (r *Reporter) checkServiceDay(ctx context.Context, now time.Time) {
	if now.Before(gtfs.ServiceDayEnd(r.schedule.ServiceDay())) {
		return
	}
	if r.settings.RollServiceDay && r.reloadSchedule != nil {
		r.log.Printf("service day %s has ended, reloading schedule", r.schedule.ServiceDay().Format("2006-01-02"))
		schedule, err := r.reloadSchedule(ctx, now)
		if err != nil {
			r.log.Printf("unable to reload schedule, continuing with %s. error:%v", r.schedule, err)
			return
		}
		r.schedule = schedule
		r.warnedStaleDay = false
		return
	}
	if !r.warnedStaleDay {
		r.log.Printf("warning: service day %s has ended, active trips are computed against a stale schedule day",
			r.schedule.ServiceDay().Format("2006-01-02"))
		r.warnedStaleDay = true
	}
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Millisecond)
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	mill := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d.%03d", m, s, mill)
}

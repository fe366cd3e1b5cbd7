package reporter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/OpenTransitTools/delayreport/business/data/gtfsrt"
	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/protobuf/proto"
)

var wantTestReport = "[08:12 AM] Route 22 to Downtown expected at Transit Center (C) is delayed 6.0 minutes (vehicle 7001)\n" +
	"[08:12 AM] Route 3 to Gresham is not being tracked near 2nd Ave (B)\n"

func TestNextSleep(t *testing.T) {
	tests := []struct {
		name     string
		period   time.Duration
		workTook time.Duration
		want     time.Duration
	}{
		{name: "quick work", period: 120 * time.Second, workTook: 2 * time.Second, want: 118 * time.Second},
		{name: "no work", period: 120 * time.Second, workTook: 0, want: 120 * time.Second},
		{name: "work took the whole period", period: 120 * time.Second, workTook: 120 * time.Second, want: 0},
		{name: "work took longer than the period", period: 120 * time.Second, workTook: 200 * time.Second, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextSleep(tt.period, tt.workTook); got != tt.want {
				t.Errorf("nextSleep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFmtDuration(t *testing.T) {
	is := is.New(t)
	is.Equal(fmtDuration(83*time.Second+45*time.Millisecond), "01:23.045")
	is.Equal(fmtDuration(0), "00:00.000")
}

func TestNewReporter_requiresCollaborators(t *testing.T) {
	is := is.New(t)
	_, err := NewReporter(Config{Log: makeTestLogWriter().log, Settings: testSettings()})
	is.True(err != nil)
}

func TestReporter_runCycle(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	out := &strings.Builder{}
	nc := &testPublisher{}
	collector := NewCollector()
	r, err := NewReporter(Config{
		Log:       logWriter.log,
		Out:       out,
		Settings:  testSettings(),
		Schedule:  buildTestSchedule(t, testServiceDay),
		Feed:      &testFeed{feed: buildTestFeed()},
		Publisher: NewSummaryPublisher(logWriter.log, nc, "delay-report"),
		Metrics:   collector,
	})
	is.NoErr(err)

	report, err := r.runCycle(context.Background(), testNow)
	is.NoErr(err)
	is.Equal(out.String(), wantTestReport)
	is.Equal(len(report.Delayed), 1)
	is.Equal(report.Delayed[0].DelayMinutes, 6.0)
	is.Equal(len(report.Missing), 1)
	is.Equal(report.Missing[0].TripId, "T3")

	is.Equal(len(nc.messages), 1)
	is.Equal(testutil.ToFloat64(collector.ActiveTrips), 2.0) // route 100 hasn't started
	is.Equal(testutil.ToFloat64(collector.DelayedTrips), 1.0)
	is.Equal(testutil.ToFloat64(collector.MissingTrips), 1.0)
	is.Equal(testutil.ToFloat64(collector.SummariesPublished), 1.0)
	is.True(logWriter.contains("2 active trips, 1 delayed, 1 missing, 0 on time"))
}

func TestReporter_runCycleFromFeedServer(t *testing.T) {
	is := is.New(t)
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		data, err := proto.Marshal(buildTestFeed())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()

	settings := testSettings()
	settings.FeedURL = server.URL + "/ws/V1/TripUpdate"
	feed, err := gtfsrt.NewFeedClient(settings.FeedURL, settings.APIKey, settings.FeedTimeout())
	is.NoErr(err)

	out := &strings.Builder{}
	r, err := NewReporter(Config{
		Log:      makeTestLogWriter().log,
		Out:      out,
		Settings: settings,
		Schedule: buildTestSchedule(t, testServiceDay),
		Feed:     feed,
	})
	is.NoErr(err)
	_, err = r.runCycle(context.Background(), testNow)
	is.NoErr(err)
	is.Equal(gotKey, "secret")
	is.Equal(out.String(), wantTestReport)
}

func TestReporter_runCycleFetchError(t *testing.T) {
	is := is.New(t)
	out := &strings.Builder{}
	collector := NewCollector()
	fetchErr := &gtfsrt.FetchError{URL: "http://localhost/feed?key=REDACTED", Err: errors.New("connection refused")}
	r, err := NewReporter(Config{
		Log:      makeTestLogWriter().log,
		Out:      out,
		Settings: testSettings(),
		Schedule: buildTestSchedule(t, testServiceDay),
		Feed:     &testFeed{err: fetchErr},
		Metrics:  collector,
	})
	is.NoErr(err)

	_, err = r.runCycle(context.Background(), testNow)
	var gotErr *gtfsrt.FetchError
	is.True(errors.As(err, &gotErr))
	is.Equal(out.String(), "") // nothing reported for an abandoned cycle
	is.Equal(testutil.ToFloat64(collector.FetchErrors), 1.0)
	is.Equal(testutil.ToFloat64(collector.Cycles), 0.0)
}

func TestReporter_staleServiceDayWarnsOnce(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	r, err := NewReporter(Config{
		Log:      logWriter.log,
		Out:      &strings.Builder{},
		Settings: testSettings(),
		Schedule: buildTestSchedule(t, testServiceDay),
		Feed:     &testFeed{feed: buildTestFeed()},
	})
	is.NoErr(err)

	nextDay := testNow.Add(24 * time.Hour)
	for i := 0; i < 3; i++ {
		_, err = r.runCycle(context.Background(), nextDay)
		is.NoErr(err)
	}
	warnings := 0
	for _, line := range logWriter.logLines {
		if strings.Contains(line, "stale schedule day") {
			warnings++
		}
	}
	is.Equal(warnings, 1)
	is.True(r.schedule.ServiceDay().Equal(testServiceDay)) // schedule is kept
}

func TestReporter_rollServiceDay(t *testing.T) {
	is := is.New(t)
	settings := testSettings()
	settings.RollServiceDay = true
	reloads := 0
	reload := func(_ context.Context, serviceDay time.Time) (*gtfs.Schedule, error) {
		reloads++
		return buildTestSchedule(t, serviceDay), nil
	}
	out := &strings.Builder{}
	r, err := NewReporter(Config{
		Log:            makeTestLogWriter().log,
		Out:            out,
		Settings:       settings,
		Schedule:       buildTestSchedule(t, testServiceDay),
		Feed:           &testFeed{feed: buildTestFeed()},
		ReloadSchedule: reload,
	})
	is.NoErr(err)

	nextDay := testNow.Add(24 * time.Hour)
	report, err := r.runCycle(context.Background(), nextDay)
	is.NoErr(err)
	is.Equal(reloads, 1)
	is.True(r.schedule.ServiceDay().Equal(testServiceDay.Add(24 * time.Hour)))
	// the feed still reports for the old day, route 22 is now running early
	is.Equal(len(report.Delayed), 0)
	is.Equal(len(report.OnTime), 1)
	is.Equal(len(report.Missing), 1)

	_, err = r.runCycle(context.Background(), nextDay.Add(time.Minute))
	is.NoErr(err)
	is.Equal(reloads, 1) // only reloaded when the day changes
}

func TestReporter_rollServiceDayReloadFailureKeepsSchedule(t *testing.T) {
	is := is.New(t)
	settings := testSettings()
	settings.RollServiceDay = true
	logWriter := makeTestLogWriter()
	r, err := NewReporter(Config{
		Log:      logWriter.log,
		Out:      &strings.Builder{},
		Settings: settings,
		Schedule: buildTestSchedule(t, testServiceDay),
		Feed:     &testFeed{feed: buildTestFeed()},
		ReloadSchedule: func(_ context.Context, _ time.Time) (*gtfs.Schedule, error) {
			return nil, &gtfs.LoadError{Source: "gtfs", Err: errors.New("gone")}
		},
	})
	is.NoErr(err)
	_, err = r.runCycle(context.Background(), testNow.Add(24*time.Hour))
	is.NoErr(err)
	is.True(r.schedule.ServiceDay().Equal(testServiceDay))
	is.True(logWriter.contains("unable to reload schedule"))
}

func TestReporter_RunDelayReportLoop(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	out := &syncBuffer{}
	feed := &testFeed{feed: buildTestFeed()}
	settings := testSettings()
	settings.PollPeriodSeconds = 1
	r, err := NewReporter(Config{
		Log:      logWriter.log,
		Out:      out,
		Settings: settings,
		Schedule: buildTestSchedule(t, testServiceDay),
		Feed:     feed,
		Now:      func() time.Time { return testNow },
	})
	is.NoErr(err)

	shutdown := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- r.RunDelayReportLoop(shutdown)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for feed.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	is.True(feed.callCount() >= 2) // loop ran more than once
	shutdown <- os.Interrupt

	select {
	case err = <-done:
		is.NoErr(err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunDelayReportLoop did not return after shutdown signal")
	}
	is.True(strings.HasPrefix(out.String(), wantTestReport))
	is.True(strings.HasSuffix(out.String(), farewell+"\n"))
	is.True(logWriter.contains("Exiting on shutdown signal"))
}

func TestReporter_RunDelayReportLoop_pendingShutdownSkipsWork(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	out := &syncBuffer{}
	feed := &testFeed{feed: buildTestFeed()}
	r, err := NewReporter(Config{
		Log:      logWriter.log,
		Out:      out,
		Settings: testSettings(),
		Schedule: buildTestSchedule(t, testServiceDay),
		Feed:     feed,
		Now:      func() time.Time { return testNow },
	})
	is.NoErr(err)

	// run repeatedly, the first select picks randomly between the signal and the zero length sleep
	for i := 0; i < 20; i++ {
		shutdown := make(chan os.Signal, 1)
		shutdown <- os.Interrupt
		is.NoErr(r.RunDelayReportLoop(shutdown))
	}
	is.Equal(feed.callCount(), 0) // no cycle ran
	is.Equal(out.String(), strings.Repeat(farewell+"\n", 20))
}

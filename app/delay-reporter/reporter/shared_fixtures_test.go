package reporter

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/OpenTransitTools/delayreport/business/data/gtfsrt"
	"google.golang.org/protobuf/proto"
)

type testLogWriter struct {
	mu       sync.Mutex
	logLines []string
	log      *log.Logger
}

func makeTestLogWriter() *testLogWriter {
	logWriter := testLogWriter{
		logLines: make([]string, 0),
	}
	logger := log.New(&logWriter, "DELAY_REPORTER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logWriter.log = logger
	return &logWriter
}

func (t *testLogWriter) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logLines = append(t.logLines, string(p))
	return len(p), nil
}

// contains returns true if any logged line contains text
func (t *testLogWriter) contains(text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range t.logLines {
		if strings.Contains(line, text) {
			return true
		}
	}
	return false
}

// syncBuffer is a strings.Builder safe to read while the loop writes to it
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testServiceDay is a Friday
var testServiceDay = time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)

// testNow is 8:12am on testServiceDay
var testNow = time.Date(2022, 7, 1, 8, 12, 0, 0, time.UTC)

func testClock(hour int, minute int) time.Time {
	return time.Date(2022, 7, 1, hour, minute, 0, 0, time.UTC)
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func minutes(hour int, minute int) *int {
	return intPtr(hour*3600 + minute*60)
}

// buildTestSchedule places three trips on serviceDay:
// route 22 to Downtown A 8:00, B 8:10, C 8:20
// route 3 to Gresham A 8:05, B 8:15, C 8:25
// route 100 to Airport A 9:00, C 9:30
func buildTestSchedule(t *testing.T, serviceDay time.Time) *gtfs.Schedule {
	records := gtfs.ScheduleRecords{
		Trips: []gtfs.Trip{
			{TripId: "T22", RouteId: "22", ServiceId: "W", TripHeadsign: strPtr("Downtown")},
			{TripId: "T3", RouteId: "3", ServiceId: "W", TripHeadsign: strPtr("Gresham")},
			{TripId: "T100", RouteId: "100", ServiceId: "W", TripHeadsign: strPtr("Airport")},
		},
		Stops: []gtfs.Stop{
			{StopId: "A", StopName: "Main St"},
			{StopId: "B", StopName: "2nd Ave"},
			{StopId: "C", StopName: "Transit Center"},
		},
		StopTimes: []gtfs.StopTime{
			{TripId: "T22", StopSequence: 1, StopId: "A", DepartureTime: minutes(8, 0)},
			{TripId: "T22", StopSequence: 2, StopId: "B", DepartureTime: minutes(8, 10)},
			{TripId: "T22", StopSequence: 3, StopId: "C", DepartureTime: minutes(8, 20)},
			{TripId: "T3", StopSequence: 1, StopId: "A", DepartureTime: minutes(8, 5)},
			{TripId: "T3", StopSequence: 2, StopId: "B", DepartureTime: minutes(8, 15)},
			{TripId: "T3", StopSequence: 3, StopId: "C", DepartureTime: minutes(8, 25)},
			{TripId: "T100", StopSequence: 1, StopId: "A", DepartureTime: minutes(9, 0)},
			{TripId: "T100", StopSequence: 2, StopId: "C", DepartureTime: minutes(9, 30)},
		},
	}
	schedule, err := gtfs.NewSchedule("test", serviceDay, records)
	if err != nil {
		t.Fatalf("unable to build test schedule: %v", err)
	}
	return schedule
}

// buildTestFeed has route 22 expected at C at 8:26, six minutes late, and nothing for route 3
func buildTestFeed() *gtfsrtpb.FeedMessage {
	return &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(testNow.Unix())),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("1"),
				TripUpdate: &gtfsrtpb.TripUpdate{
					Trip:    &gtfsrtpb.TripDescriptor{TripId: proto.String("T22"), RouteId: proto.String("22")},
					Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("7001")},
					StopTimeUpdate: []*gtfsrtpb.TripUpdate_StopTimeUpdate{
						{
							StopId:    proto.String("C"),
							Departure: &gtfsrtpb.TripUpdate_StopTimeEvent{Time: proto.Int64(testClock(8, 26).Unix())},
						},
					},
				},
			},
		},
	}
}

func testSettings() Settings {
	settings := defaultSettings()
	settings.GTFSPath = "testdata"
	settings.FeedURL = "http://localhost/feed"
	settings.APIKey = "secret"
	settings.Timezone = "UTC"
	return settings
}

// testFeed implements FeedFetcher
type testFeed struct {
	mu    sync.Mutex
	feed  *gtfsrtpb.FeedMessage
	err   error
	calls int
}

func (f *testFeed) Fetch(_ context.Context) (*gtfsrt.ObservationStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return gtfsrt.NewObservationStore(f.feed), nil
}

func (f *testFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testPublisher implements MessagePublisher
type testPublisher struct {
	subjects []string
	messages [][]byte
	fail     bool
}

func (p *testPublisher) Publish(subj string, data []byte) error {
	if p.fail {
		return errors.New("nats: connection closed")
	}
	p.subjects = append(p.subjects, subj)
	p.messages = append(p.messages, data)
	return nil
}

package reporter

import (
	"encoding/json"
	"testing"

	"github.com/OpenTransitTools/delayreport/business/reconcile"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestSummaryPublisher_publish(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	nc := &testPublisher{}
	publisher := NewSummaryPublisher(logWriter.log, nc, "delay-report")

	report := reconcile.Report{
		Delayed: []reconcile.Delayed{{TripId: "T22", RouteId: "22", NextStopId: "C", DelayMinutes: 6}},
		Missing: []reconcile.Missing{{TripId: "T3", RouteId: "3", ClosestStopId: "B", ClosestStopSequence: 2}},
		OnTime:  []reconcile.OnTime{{TripId: "T7"}},
	}
	summary := makeCycleSummary(testNow, testServiceDay, 3, report)
	is.True(publisher.publish(summary))

	is.Equal(nc.subjects, []string{"delay-report"})
	got := CycleSummary{}
	is.NoErr(json.Unmarshal(nc.messages[0], &got))
	_, err := uuid.Parse(got.Id)
	is.NoErr(err) // id is a uuid
	is.Equal(got.Id, summary.Id)
	is.True(got.GeneratedAt.Equal(testNow))
	is.Equal(got.ActiveCount, 3)
	is.Equal(got.OnTimeCount, 1)
	is.Equal(got.Delayed[0].TripId, "T22")
	is.Equal(got.Missing[0].ClosestStopSequence, 2)
}

func TestSummaryPublisher_publishFailureIsLogged(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	publisher := NewSummaryPublisher(logWriter.log, &testPublisher{fail: true}, "delay-report")
	ok := publisher.publish(makeCycleSummary(testNow, testServiceDay, 0, reconcile.Report{}))
	is.True(!ok)
	is.True(logWriter.contains("failed to send CycleSummary"))
}

func TestMakeCycleSummary_uniqueIds(t *testing.T) {
	is := is.New(t)
	first := makeCycleSummary(testNow, testServiceDay, 0, reconcile.Report{})
	second := makeCycleSummary(testNow, testServiceDay, 0, reconcile.Report{})
	is.True(first.Id != second.Id)
}

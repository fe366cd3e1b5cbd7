package reporter

import (
	"encoding/json"
	"log"
	"time"

	"github.com/OpenTransitTools/delayreport/business/reconcile"
	"github.com/google/uuid"
)

// CycleSummary is the machine readable result of a poll cycle
type CycleSummary struct {
	Id          string              `json:"id"`
	GeneratedAt time.Time           `json:"generated_at"`
	ServiceDay  time.Time           `json:"service_day"`
	ActiveCount int                 `json:"active_count"`
	Delayed     []reconcile.Delayed `json:"delayed"`
	Missing     []reconcile.Missing `json:"missing"`
	OnTimeCount int                 `json:"on_time_count"`
}

// makeCycleSummary builds a CycleSummary with a new unique id
func makeCycleSummary(generatedAt time.Time, serviceDay time.Time, activeCount int, report reconcile.Report) CycleSummary {
	return CycleSummary{
		Id:          uuid.NewString(),
		GeneratedAt: generatedAt,
		ServiceDay:  serviceDay,
		ActiveCount: activeCount,
		Delayed:     report.Delayed,
		Missing:     report.Missing,
		OnTimeCount: len(report.OnTime),
	}
}

// MessagePublisher sends data on a subject, implemented by *nats.Conn
type MessagePublisher interface {
	Publish(subj string, data []byte) error
}

// SummaryPublisher sends CycleSummary messages as json
type SummaryPublisher struct {
	log       *log.Logger
	publisher MessagePublisher
	subject   string
}

// NewSummaryPublisher creates a SummaryPublisher sending on subject through publisher
func NewSummaryPublisher(log *log.Logger, publisher MessagePublisher, subject string) *SummaryPublisher {
	return &SummaryPublisher{
		log:       log,
		publisher: publisher,
		subject:   subject,
	}
}

// publish sends summary, failures are logged and otherwise ignored
func (p *SummaryPublisher) publish(summary CycleSummary) bool {
	jsonData, err := json.Marshal(summary)
	if err != nil {
		p.log.Printf("failed to marshal CycleSummary in SummaryPublisher.publish, error:%v", err)
		return false
	}
	err = p.publisher.Publish(p.subject, jsonData)
	if err != nil {
		p.log.Printf("failed to send CycleSummary %s on %s, error:%v", summary.Id, p.subject, err)
		return false
	}
	return true
}

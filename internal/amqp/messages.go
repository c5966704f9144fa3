package amqp

import (
	"encoding/json"
	"time"
)

// ReportJobMessage asks a worker to generate the report for one billing
// period. It carries only the period; the worker loads configs itself.
type ReportJobMessage struct {
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReportJobMessage(month, year int) *ReportJobMessage {
	return &ReportJobMessage{
		Month:     month,
		Year:      year,
		Timestamp: time.Now(),
	}
}

func (m *ReportJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportJobMessageFromJSON(data []byte) (*ReportJobMessage, error) {
	var msg ReportJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

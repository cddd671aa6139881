// Package adapter defines the boundary for publishing report completion
// events to downstream systems.
//
// The generator owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EventTypeReportCompleted is the only event type published.
const EventTypeReportCompleted = "report_completed"

// Encoding names accepted by Encode.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// ReportEvent is the payload published when a report generation finishes,
// successfully or not.
type ReportEvent struct {
	ContractVersion string  `json:"contract_version" msgpack:"contract_version"`
	EventType       string  `json:"event_type" msgpack:"event_type"`
	ReportID        string  `json:"report_id" msgpack:"report_id"`
	ParentReportID  string  `json:"parent_report_id,omitempty" msgpack:"parent_report_id,omitempty"`
	Attempt         int     `json:"attempt" msgpack:"attempt"`
	Provider        string  `json:"provider" msgpack:"provider"`
	Model           string  `json:"model" msgpack:"model"`
	Outcome         string  `json:"outcome" msgpack:"outcome"` // success, malformed_report, etc.
	Message         string  `json:"message,omitempty" msgpack:"message,omitempty"`
	Stage           string  `json:"stage,omitempty" msgpack:"stage,omitempty"`
	ChartPoints     int     `json:"chart_points" msgpack:"chart_points"`
	SummaryScore    float64 `json:"summary_score" msgpack:"summary_score"`
	StoragePath     string  `json:"storage_path,omitempty" msgpack:"storage_path,omitempty"`
	Timestamp       string  `json:"timestamp" msgpack:"timestamp"` // RFC 3339
	DurationMs      int64   `json:"duration_ms" msgpack:"duration_ms"`
}

// Encode serializes the event in the named encoding. An empty name is JSON.
func Encode(event *ReportEvent, encoding string) ([]byte, error) {
	switch encoding {
	case "", EncodingJSON:
		return json.Marshal(event)
	case EncodingMsgpack:
		return msgpack.Marshal(event)
	default:
		return nil, fmt.Errorf("unknown event encoding %q", encoding)
	}
}

// Decode parses an event produced by Encode.
func Decode(data []byte, encoding string) (*ReportEvent, error) {
	var event ReportEvent
	var err error
	switch encoding {
	case "", EncodingJSON:
		err = json.Unmarshal(data, &event)
	case EncodingMsgpack:
		err = msgpack.Unmarshal(data, &event)
	default:
		return nil, fmt.Errorf("unknown event encoding %q", encoding)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Adapter publishes report completion events to a downstream system.
type Adapter interface {
	// Publish sends a report completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ReportEvent) error

	// Close releases adapter resources.
	Close() error
}

package types

import (
	"errors"
	"fmt"
)

// ReportMeta carries the identity of one report generation. It is created
// per request and passed explicitly to every component that logs, stores or
// publishes on behalf of that request.
type ReportMeta struct {
	// ReportID is the canonical report identifier. Must be globally unique.
	ReportID string
	// ParentReportID links a retried generation to its predecessor.
	// Nil for initial attempts.
	ParentReportID *string
	// Attempt is the attempt number. Starts at 1.
	Attempt int
}

// Validate validates lineage rules:
//   - attempt >= 1
//   - attempt == 1 => parent_report_id must be nil
//   - attempt > 1 => parent_report_id must be present
func (m *ReportMeta) Validate() error {
	if m.ReportID == "" {
		return errors.New("report_id must be non-empty")
	}
	if m.Attempt < 1 {
		return fmt.Errorf("attempt must be >= 1, got %d", m.Attempt)
	}
	if m.Attempt == 1 && m.ParentReportID != nil {
		return errors.New("initial attempt must not have parent_report_id")
	}
	if m.Attempt > 1 && m.ParentReportID == nil {
		return fmt.Errorf("retry (attempt=%d) must have parent_report_id", m.Attempt)
	}
	return nil
}

// OutcomeStatus is the final status of a report generation.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates a report was produced.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeTransportFailure indicates the model stream failed or was cut off.
	OutcomeTransportFailure OutcomeStatus = "transport_failure"
	// OutcomeEmptyResponse indicates the model produced no text.
	OutcomeEmptyResponse OutcomeStatus = "empty_response"
	// OutcomeMalformedReport indicates no JSON document could be recovered.
	OutcomeMalformedReport OutcomeStatus = "malformed_report"
	// OutcomeInvalidSchema indicates the document lacked chart data.
	OutcomeInvalidSchema OutcomeStatus = "invalid_schema"
	// OutcomeCanceled indicates the caller canceled the generation.
	OutcomeCanceled OutcomeStatus = "canceled"
	// OutcomeInvalidInput indicates the request was rejected before any call.
	OutcomeInvalidInput OutcomeStatus = "invalid_input"
)

// Outcome is the final outcome of a report generation.
type Outcome struct {
	Status  OutcomeStatus `json:"status" msgpack:"status"`
	Message string        `json:"message" msgpack:"message"`
}

// IsSuccess returns true for OutcomeSuccess.
func (o *Outcome) IsSuccess() bool {
	return o != nil && o.Status == OutcomeSuccess
}

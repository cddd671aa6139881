package runtime

import (
	"errors"
	"fmt"
	"testing"

	"github.com/RAGGA-TIME/lifekline/types"
)

func TestDetermineOutcome(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     types.OutcomeStatus
		wantExit int
	}{
		{"success", nil, types.OutcomeSuccess, ExitCodeCompleted},
		{"invalid input", fmt.Errorf("year: %w", ErrInvalidInput), types.OutcomeInvalidInput, ExitCodeInvalidInput},
		{"transport", &IngestionError{Kind: IngestionErrorTransport, Err: errors.New("reset")}, types.OutcomeTransportFailure, ExitCodeTransportFailure},
		{"canceled", &IngestionError{Kind: IngestionErrorCanceled, Err: errors.New("canceled")}, types.OutcomeCanceled, ExitCodeTransportFailure},
		{"empty", &IngestionError{Kind: IngestionErrorEmptyResponse, Err: errors.New("empty")}, types.OutcomeEmptyResponse, ExitCodeReportFailure},
		{"malformed", &IngestionError{Kind: IngestionErrorMalformedReport, Err: errors.New("bad")}, types.OutcomeMalformedReport, ExitCodeReportFailure},
		{"schema", fmt.Errorf("wrapped: %w", &IngestionError{Kind: IngestionErrorInvalidSchema, Err: errors.New("chartPoints")}), types.OutcomeInvalidSchema, ExitCodeReportFailure},
		{"provider", errors.New("status 500"), types.OutcomeTransportFailure, ExitCodeTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineOutcome(tt.err)
			if got.Status != tt.want {
				t.Errorf("Status = %q, want %q", got.Status, tt.want)
			}
			if code := ExitCode(got.Status); code != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", code, tt.wantExit)
			}
			if tt.err != nil && got.Message != tt.err.Error() {
				t.Errorf("Message = %q, want %q", got.Message, tt.err.Error())
			}
		})
	}
}

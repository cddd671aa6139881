package runtime

import (
	"errors"

	"github.com/RAGGA-TIME/lifekline/types"
)

// Exit codes shared by the CLI commands.
const (
	ExitCodeCompleted        = 0 // report produced
	ExitCodeReportFailure    = 1 // empty, malformed or schema-invalid answer
	ExitCodeTransportFailure = 2 // stream, provider or cancellation failure
	ExitCodeInvalidInput     = 3 // invalid arguments or input
)

// ErrInvalidInput marks errors caused by the caller's request.
var ErrInvalidInput = errors.New("invalid input")

// DetermineOutcome maps the error of a generation or ingestion to its outcome.
// A nil error is a success.
func DetermineOutcome(err error) *types.Outcome {
	if err == nil {
		return &types.Outcome{Status: types.OutcomeSuccess, Message: "report generated"}
	}

	status := types.OutcomeTransportFailure
	if errors.Is(err, ErrInvalidInput) {
		status = types.OutcomeInvalidInput
	} else if kind, ok := ingestionKind(err); ok {
		switch kind {
		case IngestionErrorCanceled:
			status = types.OutcomeCanceled
		case IngestionErrorEmptyResponse:
			status = types.OutcomeEmptyResponse
		case IngestionErrorMalformedReport:
			status = types.OutcomeMalformedReport
		case IngestionErrorInvalidSchema:
			status = types.OutcomeInvalidSchema
		}
	}
	return &types.Outcome{Status: status, Message: err.Error()}
}

// ExitCode returns the process exit code for an outcome status.
func ExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return ExitCodeCompleted
	case types.OutcomeEmptyResponse, types.OutcomeMalformedReport, types.OutcomeInvalidSchema:
		return ExitCodeReportFailure
	case types.OutcomeInvalidInput:
		return ExitCodeInvalidInput
	default:
		return ExitCodeTransportFailure
	}
}

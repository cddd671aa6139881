package types //nolint:revive // types is a valid package name

import (
	"testing"
)

func TestReportMeta_Validate(t *testing.T) {
	parent := "rep-parent-001"

	tests := []struct {
		name    string
		meta    ReportMeta
		wantErr bool
	}{
		{
			name:    "empty report_id",
			meta:    ReportMeta{ReportID: "", Attempt: 1},
			wantErr: true,
		},
		{
			name:    "attempt zero",
			meta:    ReportMeta{ReportID: "rep-001", Attempt: 0},
			wantErr: true,
		},
		{
			name:    "initial attempt with parent",
			meta:    ReportMeta{ReportID: "rep-001", Attempt: 1, ParentReportID: &parent},
			wantErr: true,
		},
		{
			name:    "retry without parent",
			meta:    ReportMeta{ReportID: "rep-001", Attempt: 2},
			wantErr: true,
		},
		{
			name:    "valid initial attempt",
			meta:    ReportMeta{ReportID: "rep-001", Attempt: 1},
			wantErr: false,
		},
		{
			name:    "valid retry",
			meta:    ReportMeta{ReportID: "rep-002", Attempt: 2, ParentReportID: &parent},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOutcome_IsSuccess(t *testing.T) {
	var nilOutcome *Outcome
	if nilOutcome.IsSuccess() {
		t.Error("nil outcome should not be success")
	}
	if !(&Outcome{Status: OutcomeSuccess}).IsSuccess() {
		t.Error("success outcome should report success")
	}
	if (&Outcome{Status: OutcomeMalformedReport}).IsSuccess() {
		t.Error("malformed outcome should not report success")
	}
}

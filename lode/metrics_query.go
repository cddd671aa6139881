package lode

import (
	"context"
	"errors"

	"github.com/justapithecus/lode/lode"
)

// ErrNoMetricsFound is returned when no metrics record matches.
var ErrNoMetricsFound = errors.New("no metrics records found")

// QueryLatestMetrics returns the most recent metrics record, optionally
// restricted to one report and one provider.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, reportID, provider string) (map[string]any, error) {
	var latest map[string]any
	f := recordFilter{kind: RecordKindMetrics, provider: provider, reportID: reportID}
	err := walkRecords(ctx, ds, f, func(m map[string]any) (bool, error) {
		latest = m
		return false, nil
	})
	switch {
	case err != nil:
		return nil, err
	case latest == nil:
		return nil, ErrNoMetricsFound
	}
	return latest, nil
}

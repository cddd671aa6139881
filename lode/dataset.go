package lode

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// NewReadDataset opens the dataset for queries. It shares layout and codec
// with the write path in NewLodeClientWithFactory.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return newDataset(dataset, factory)
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// snapshotMatches reports whether any file of snap lies under the
// partition key=value. An empty value matches everything.
func snapshotMatches(snap *lode.Snapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue reports whether path has the exact segment
// key=value, so report_id=r-1 does not match report_id=r-10.
func matchesPartitionValue(path, key, value string) bool {
	want := key + "=" + value
	for seg := range strings.SplitSeq(path, "/") {
		if seg == want {
			return true
		}
	}
	return false
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

// recordFilter selects stored records by partition value. Empty fields
// match everything.
type recordFilter struct {
	kind     string
	provider string
	day      string
	reportID string
}

func (f recordFilter) pairs() [4][2]string {
	return [4][2]string{
		{"record_kind", f.kind},
		{"provider", f.provider},
		{"day", f.day},
		{"report_id", f.reportID},
	}
}

// admits checks record fields. Manifest paths only pre-filter snapshots;
// the record itself is authoritative.
func (f recordFilter) admits(m map[string]any) bool {
	for _, kv := range f.pairs() {
		if kv[1] != "" && toString(m[kv[0]]) != kv[1] {
			return false
		}
	}
	return true
}

func (f recordFilter) admitsSnapshot(snap *lode.Snapshot) bool {
	for _, kv := range f.pairs() {
		if !snapshotMatches(snap, kv[0], kv[1]) {
			return false
		}
	}
	return true
}

// walkRecords visits records admitted by f, latest first, until fn
// returns false or an error.
func walkRecords(ctx context.Context, ds lode.Dataset, f recordFilter, fn func(map[string]any) (bool, error)) error {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return WrapReadError(err, "lifekline/snapshots")
	}
	for _, snap := range slices.Backward(snapshots) {
		if !f.admitsSnapshot(snap) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return WrapReadError(err, fmt.Sprintf("lifekline/snapshot/%s", snap.ID))
		}
		for _, item := range slices.Backward(data) {
			m, ok := item.(map[string]any)
			if !ok || !f.admits(m) {
				continue
			}
			if more, err := fn(m); err != nil || !more {
				return err
			}
		}
	}
	return nil
}

package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("openai", "glm-4.6", "fs", "rep-001")

	c.IncReportStarted()
	c.IncReportCompleted()
	c.IncReportFailed("malformed_report")
	c.IncReportFailed("malformed_report")
	c.IncReportFailed("transport")
	c.IncParsedByStage("raw")
	c.IncParsedByStage("repaired")
	c.IncParsedByStage("repaired")
	c.IncHeuristicRewrite()
	c.IncProviderRequestSuccess()
	c.IncProviderRequestFailure()
	c.IncBaziLookupSuccess()
	c.IncBaziLookupFailure()
	c.IncBaziLookupFailure()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteFailure()
	c.IncPublishSuccess()
	c.IncPublishFailure()

	s := c.Snapshot()

	if s.ReportsStarted != 1 {
		t.Errorf("ReportsStarted = %d, want 1", s.ReportsStarted)
	}
	if s.ReportsCompleted != 1 {
		t.Errorf("ReportsCompleted = %d, want 1", s.ReportsCompleted)
	}
	if s.ReportsFailed != 3 {
		t.Errorf("ReportsFailed = %d, want 3", s.ReportsFailed)
	}
	if s.FailedByKind["malformed_report"] != 2 {
		t.Errorf("FailedByKind[malformed_report] = %d, want 2", s.FailedByKind["malformed_report"])
	}
	if s.FailedByKind["transport"] != 1 {
		t.Errorf("FailedByKind[transport] = %d, want 1", s.FailedByKind["transport"])
	}
	if s.ParsedByStage["repaired"] != 2 {
		t.Errorf("ParsedByStage[repaired] = %d, want 2", s.ParsedByStage["repaired"])
	}
	if s.HeuristicRewrites != 1 {
		t.Errorf("HeuristicRewrites = %d, want 1", s.HeuristicRewrites)
	}
	if s.ProviderRequestSuccess != 1 || s.ProviderRequestFailure != 1 {
		t.Errorf("provider requests = %d/%d, want 1/1", s.ProviderRequestSuccess, s.ProviderRequestFailure)
	}
	if s.BaziLookupSuccess != 1 || s.BaziLookupFailure != 2 {
		t.Errorf("bazi lookups = %d/%d, want 1/2", s.BaziLookupSuccess, s.BaziLookupFailure)
	}
	if s.LodeWriteSuccess != 2 {
		t.Errorf("LodeWriteSuccess = %d, want 2", s.LodeWriteSuccess)
	}
	if s.LodeWriteFailure != 1 {
		t.Errorf("LodeWriteFailure = %d, want 1", s.LodeWriteFailure)
	}
	if s.PublishSuccess != 1 || s.PublishFailure != 1 {
		t.Errorf("publish = %d/%d, want 1/1", s.PublishSuccess, s.PublishFailure)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("gemini", "gemini-3-pro-preview", "s3", "rep-42")
	s := c.Snapshot()

	if s.Provider != "gemini" {
		t.Errorf("Provider = %q, want %q", s.Provider, "gemini")
	}
	if s.Model != "gemini-3-pro-preview" {
		t.Errorf("Model = %q, want %q", s.Model, "gemini-3-pro-preview")
	}
	if s.StorageBackend != "s3" {
		t.Errorf("StorageBackend = %q, want %q", s.StorageBackend, "s3")
	}
	if s.ReportID != "rep-42" {
		t.Errorf("ReportID = %q, want %q", s.ReportID, "rep-42")
	}
}

func TestCollector_AbsorbStream(t *testing.T) {
	c := NewCollector("openai", "glm-4.6", "none", "rep-001")

	counters := StreamCounters{Chunks: 12, Bytes: 4096, Frames: 40, DataFrames: 30, SkippedFrames: 2, Deltas: 28}
	c.AbsorbStream(counters, 2048)
	c.AbsorbStream(counters, 2048)

	s := c.Snapshot()
	if s.Stream != counters {
		t.Errorf("Stream = %+v, want %+v", s.Stream, counters)
	}
	if s.TextBytes != 2048 {
		t.Errorf("TextBytes = %d, want 2048 (absorb replaces, not adds)", s.TextBytes)
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("openai", "glm-4.6", "fs", "rep-001")
	c.IncReportStarted()
	c.IncParsedByStage("raw")

	s1 := c.Snapshot()

	c.IncReportCompleted()
	c.IncParsedByStage("raw")
	s1.ParsedByStage["raw"] = 999
	s1.FailedByKind["injected"] = 1

	if s1.ReportsCompleted != 0 {
		t.Errorf("s1.ReportsCompleted = %d, want 0 (snapshot should be frozen)", s1.ReportsCompleted)
	}

	s2 := c.Snapshot()
	if s2.ReportsCompleted != 1 {
		t.Errorf("s2.ReportsCompleted = %d, want 1", s2.ReportsCompleted)
	}
	if s2.ParsedByStage["raw"] != 2 {
		t.Errorf("ParsedByStage[raw] = %d, want 2 (collector isolated from snapshot mutation)", s2.ParsedByStage["raw"])
	}
	if _, exists := s2.FailedByKind["injected"]; exists {
		t.Error("FailedByKind should not contain injected key from snapshot mutation")
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncReportStarted()
	c.IncReportCompleted()
	c.IncReportFailed("transport")
	c.AbsorbStream(StreamCounters{Frames: 1}, 1)
	c.IncParsedByStage("raw")
	c.IncHeuristicRewrite()
	c.IncProviderRequestSuccess()
	c.IncProviderRequestFailure()
	c.IncBaziLookupSuccess()
	c.IncBaziLookupFailure()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteFailure()
	c.IncPublishSuccess()
	c.IncPublishFailure()

	s := c.Snapshot()
	if s.ReportsStarted != 0 {
		t.Errorf("nil collector snapshot ReportsStarted = %d, want 0", s.ReportsStarted)
	}
	if s.ParsedByStage != nil {
		t.Errorf("nil collector snapshot ParsedByStage should be nil, got %v", s.ParsedByStage)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("openai", "glm-4.6", "fs", "rep-001")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncReportStarted()
				c.IncLodeWriteSuccess()
				c.IncParsedByStage("raw")
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.ReportsStarted != want {
		t.Errorf("ReportsStarted = %d, want %d", s.ReportsStarted, want)
	}
	if s.LodeWriteSuccess != want {
		t.Errorf("LodeWriteSuccess = %d, want %d", s.LodeWriteSuccess, want)
	}
	if s.ParsedByStage["raw"] != want {
		t.Errorf("ParsedByStage[raw] = %d, want %d", s.ParsedByStage["raw"], want)
	}
}

package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSignals})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalRecords != 0 {
		t.Errorf("expected 0 records, got %d", summary.TotalRecords)
	}
	if summary.UniqueSources != 0 {
		t.Errorf("expected 0 unique sources, got %d", summary.UniqueSources)
	}
	if len(summary.PerSignal) != 0 || len(summary.SourceDistribution) != 0 {
		t.Error("expected empty maps")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalRecords != 0 || summary.PerSignal == nil {
		t.Error("expected zero summary with initialized maps")
	}
}

func TestSummarize_PopulatedTrace_PerSignalStatistics(t *testing.T) {
	// GIVEN records for two signals from two sources
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSignals})
	st.RecordSignal(SignalRecord{Source: "net.sink", Signal: "endToEndDelay", Value: 0.1})
	st.RecordSignal(SignalRecord{Source: "net.sink", Signal: "endToEndDelay", Value: 0.5})
	st.RecordSignal(SignalRecord{Source: "net.sink", Signal: "endToEndDelay", Value: 0.3})
	st.RecordSignal(SignalRecord{Source: "net.src", Signal: "packetSent", Value: 8000})

	// WHEN summarized
	summary := Summarize(st)

	// THEN totals and distribution match
	if summary.TotalRecords != 4 {
		t.Errorf("expected 4 records, got %d", summary.TotalRecords)
	}
	if summary.UniqueSources != 2 {
		t.Errorf("expected 2 unique sources, got %d", summary.UniqueSources)
	}
	if summary.SourceDistribution["net.sink"] != 3 {
		t.Errorf("expected 3 records from net.sink, got %d", summary.SourceDistribution["net.sink"])
	}

	// THEN mean = (0.1 + 0.5 + 0.3) / 3, min 0.1, max 0.5
	d := summary.PerSignal["endToEndDelay"]
	expectedMean := (0.1 + 0.5 + 0.3) / 3.0
	if d.Mean < expectedMean-0.001 || d.Mean > expectedMean+0.001 {
		t.Errorf("expected mean ~%.4f, got %.4f", expectedMean, d.Mean)
	}
	if d.Min != 0.1 || d.Max != 0.5 || d.Count != 3 {
		t.Errorf("unexpected stats %+v", d)
	}
	// THEN percentiles are empirical: the smallest value covering the fraction
	if d.P50 != 0.3 || d.P90 != 0.5 || d.P99 != 0.5 {
		t.Errorf("expected p50 0.3 p90 0.5 p99 0.5, got %+v", d)
	}

	names := summary.SignalNames()
	if len(names) != 2 || names[0] != "endToEndDelay" || names[1] != "packetSent" {
		t.Errorf("unexpected signal names %v", names)
	}
}

func TestSummarize_NegativeValues_MinMax(t *testing.T) {
	// GIVEN only negative values
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSignals})
	st.RecordSignal(SignalRecord{Source: "m", Signal: "s", Value: -2})
	st.RecordSignal(SignalRecord{Source: "m", Signal: "s", Value: -5})

	// THEN the max is not stuck at zero
	s := Summarize(st).PerSignal["s"]
	if s.Max != -2 || s.Min != -5 {
		t.Errorf("expected min -5 max -2, got %+v", s)
	}
}

func TestSummarize_TextRecords_ExcludedFromStatistics(t *testing.T) {
	// GIVEN numeric delays mixed with text records of the same and another signal
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSignals})
	st.RecordSignal(SignalRecord{Source: "net.sink", Signal: "endToEndDelay", Value: 2})
	st.RecordSignal(SignalRecord{Source: "net.sink", Signal: "endToEndDelay", Text: "late"})
	st.RecordSignal(SignalRecord{Source: "net.sink", Signal: "endToEndDelay", Value: 4})
	st.RecordSignal(SignalRecord{Source: "net.src", Signal: "state", Text: "idle"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN text records count as records but not as zero-valued samples
	if summary.TotalRecords != 4 {
		t.Errorf("expected 4 records, got %d", summary.TotalRecords)
	}
	if summary.SourceDistribution["net.src"] != 1 || summary.SourceDistribution["net.sink"] != 3 {
		t.Errorf("unexpected source distribution %v", summary.SourceDistribution)
	}
	d := summary.PerSignal["endToEndDelay"]
	if d.Count != 2 {
		t.Errorf("expected 2 numeric samples, got %d", d.Count)
	}
	if d.Min != 2 || d.Max != 4 || d.Mean != 3 {
		t.Errorf("expected min=2 max=4 mean=3, got min=%g max=%g mean=%g", d.Min, d.Max, d.Mean)
	}
	if _, ok := summary.PerSignal["state"]; ok {
		t.Error("a text-only signal has no numeric statistics")
	}
}

package trace

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalRecords       int                    `yaml:"total_records"`
	UniqueSources      int                    `yaml:"unique_sources"`
	PerSignal          map[string]SignalStats `yaml:"per_signal"`
	SourceDistribution map[string]int         `yaml:"source_distribution"` // source path → records emitted
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
// Records carrying Text count toward TotalRecords and SourceDistribution
// but not toward the numeric per-signal statistics.
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		PerSignal:          make(map[string]SignalStats),
		SourceDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalRecords = len(st.Signals)
	values := make(map[string][]float64)
	for _, r := range st.Signals {
		summary.SourceDistribution[r.Source]++
		if r.Text != "" {
			continue
		}
		values[r.Signal] = append(values[r.Signal], r.Value)
		s, seen := summary.PerSignal[r.Signal]
		if !seen || r.Value < s.Min {
			s.Min = r.Value
		}
		if !seen || r.Value > s.Max {
			s.Max = r.Value
		}
		s.Count++
		s.Sum += r.Value
		summary.PerSignal[r.Signal] = s
	}
	for name, s := range summary.PerSignal {
		s.Mean = s.Sum / float64(s.Count)
		xs := values[name]
		sort.Float64s(xs)
		s.P50 = stat.Quantile(0.50, stat.Empirical, xs, nil)
		s.P90 = stat.Quantile(0.90, stat.Empirical, xs, nil)
		s.P99 = stat.Quantile(0.99, stat.Empirical, xs, nil)
		summary.PerSignal[name] = s
	}

	summary.UniqueSources = len(summary.SourceDistribution)

	return summary
}

// SignalNames returns the summarized signal names in sorted order.
func (ts *TraceSummary) SignalNames() []string {
	names := make([]string, 0, len(ts.PerSignal))
	for name := range ts.PerSignal {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

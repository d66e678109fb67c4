// Package trace records signal emissions during a run and summarizes them.
// The record types are plain data; Recorder is the listener that fills them.
package trace

// SignalRecord captures a single signal emission.
type SignalRecord struct {
	Seq    int     `yaml:"seq"`
	Time   int64   `yaml:"time_ps"`
	Source string  `yaml:"source"`
	Signal string  `yaml:"signal"`
	Value  float64 `yaml:"value"`
	Text   string  `yaml:"text,omitempty"` // non-numeric values, formatted
}

// SignalStats aggregates the numeric values of one signal.
type SignalStats struct {
	Count int     `yaml:"count"`
	Sum   float64 `yaml:"sum"`
	Mean  float64 `yaml:"mean"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	P50   float64 `yaml:"p50"`
	P90   float64 `yaml:"p90"`
	P99   float64 `yaml:"p99"`
}

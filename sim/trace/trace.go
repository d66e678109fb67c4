package trace

// TraceLevel controls what the recorder keeps.
type TraceLevel string

const (
	// TraceLevelNone disables recording (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSignals records every signal emission.
	TraceLevelSignals TraceLevel = "signals"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelSignals: true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level   TraceLevel `yaml:"level"`
	Signals []string   `yaml:"signals,omitempty"` // signal names to record; empty records all
}

// SimulationTrace collects signal records during a run.
type SimulationTrace struct {
	Config  TraceConfig    `yaml:"config"`
	Signals []SignalRecord `yaml:"signals"`
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:  config,
		Signals: make([]SignalRecord, 0),
	}
}

// Enabled reports whether anything is recorded at the configured level.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelSignals
}

// RecordSignal appends a signal record, numbering it in arrival order.
func (st *SimulationTrace) RecordSignal(record SignalRecord) {
	record.Seq = len(st.Signals)
	st.Signals = append(st.Signals, record)
}

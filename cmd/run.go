package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/desim-project/desim/sim"
	"github.com/desim-project/desim/sim/netconf"
	"github.com/desim-project/desim/sim/stats"
	"github.com/desim-project/desim/sim/trace"
)

var (
	networkPath   string   // Path to the YAML network description
	seed          int64    // Master seed; overrides the network file's seed when set
	timeLimit     string   // Simulation time limit, e.g. "10s" (empty = none)
	eventLimit    uint64   // Stop after this many events (0 = none)
	maxInitStages int      // Initialization stage limit (0 = kernel default)
	recordPath    string   // Write the signal trace as YAML to this file
	recordSignals []string // Signals to record (empty = all)
	metricsPath   string   // Write Prometheus text-format metrics to this file
	traceSpans    bool     // Export OpenTelemetry spans to stderr
)

// runOptions is the resolved form of the run flags.
type runOptions struct {
	NetworkPath    string
	Seed           *int64 // nil keeps the network file's seed
	TimeLimit      sim.Time
	EventLimit     uint64
	MaxInitStages  int
	RecordSignals  []string
	TracerProvider oteltrace.TracerProvider
}

// runResult holds everything produced by one run.
type runResult struct {
	Spec     *netconf.NetworkSpec
	Sim      *sim.Simulation
	Reason   sim.Termination
	Trace    *trace.SimulationTrace
	Registry *prometheus.Registry
	Wall     time.Duration
}

// runNetwork loads and builds the network, attaches the recorder and the
// metric collectors at the root and runs it to termination.
func runNetwork(ctx context.Context, opts runOptions) (*runResult, error) {
	spec, err := netconf.LoadNetworkSpec(opts.NetworkPath)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network spec %s: %w", opts.NetworkPath, err)
	}

	var runSeed int64
	if spec.Seed != nil {
		runSeed = *spec.Seed
	}
	if opts.Seed != nil {
		runSeed = *opts.Seed
	}
	s := sim.NewSimulation(sim.Config{
		Name:           spec.Name,
		Seed:           runSeed,
		MaxInitStages:  opts.MaxInitStages,
		TracerProvider: opts.TracerProvider,
	})
	root, err := netconf.Build(s, spec)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	signals, err := stats.NewSignalCollector(reg)
	if err != nil {
		return nil, err
	}
	if err := signals.Attach(s, root, opts.RecordSignals...); err != nil {
		return nil, err
	}
	runStats, err := stats.NewRunCollector(reg)
	if err != nil {
		return nil, err
	}

	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelSignals, Signals: opts.RecordSignals})
	rec := trace.NewRecorder(st)
	if err := rec.Attach(s, root); err != nil {
		return nil, err
	}

	logrus.Infof("Starting simulation %q with seed %d", spec.Name, runSeed)
	start := time.Now()
	reason, err := s.Run(ctx, root, sim.StopCondition{TimeLimit: opts.TimeLimit, EventLimit: opts.EventLimit})
	runStats.Observe(s)
	if err != nil {
		return nil, err
	}
	return &runResult{
		Spec:     spec,
		Sim:      s,
		Reason:   reason,
		Trace:    st,
		Registry: reg,
		Wall:     time.Since(start),
	}, nil
}

// printRunSummary writes the termination reason, the kernel counters and
// per-signal aggregates.
func printRunSummary(w io.Writer, res *runResult) {
	st := res.Sim.Stats()
	fmt.Fprintf(w, "=== Simulation %s ===\n", res.Spec.Name)
	fmt.Fprintf(w, "Termination      : %s\n", res.Reason)
	fmt.Fprintf(w, "Simulation time  : %s\n", res.Sim.Now())
	fmt.Fprintf(w, "Events           : %d dispatched, %d dropped, %d pending\n", st.Dispatched, st.Dropped, res.Sim.FELLen())
	fmt.Fprintf(w, "Discarded        : %d\n", st.Discarded)
	fmt.Fprintf(w, "Init passes      : %d\n", st.InitPasses)
	fmt.Fprintf(w, "Wall time        : %s\n", res.Wall.Round(time.Microsecond))

	summary := trace.Summarize(res.Trace)
	names := summary.SignalNames()
	if len(names) == 0 {
		return
	}
	fmt.Fprintln(w, "=== Signals ===")
	for _, name := range names {
		s := summary.PerSignal[name]
		fmt.Fprintf(w, "%-20s count=%d mean=%g min=%g p50=%g p99=%g max=%g\n",
			name, s.Count, s.Mean, s.Min, s.P50, s.P99, s.Max)
	}
}

// writeRecord writes the signal trace to path.
func writeRecord(path string, st *trace.SimulationTrace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create record file: %w", err)
	}
	if err := trace.WriteYAML(f, st); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// newSpanExporter returns a tracer provider printing finished spans to w.
func newSpanExporter(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)), nil
}

// runCmd executes the simulation described by --network
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a network simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		if networkPath == "" {
			logrus.Fatalf("--network is required")
		}
		opts := runOptions{
			NetworkPath:   networkPath,
			EventLimit:    eventLimit,
			MaxInitStages: maxInitStages,
			RecordSignals: recordSignals,
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = &seed
		}
		if timeLimit != "" {
			limit, err := sim.ParseTime(timeLimit)
			if err != nil {
				logrus.Fatalf("Invalid --time-limit: %v", err)
			}
			opts.TimeLimit = limit
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if traceSpans {
			tp, err := newSpanExporter(os.Stderr)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logrus.Warnf("span exporter shutdown: %v", err)
				}
			}()
			opts.TracerProvider = tp
		}

		res, err := runNetwork(ctx, opts)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		printRunSummary(cmd.OutOrStdout(), res)

		if recordPath != "" {
			if err := writeRecord(recordPath, res.Trace); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("Signal trace written to %s", recordPath)
		}
		if metricsPath != "" {
			if err := prometheus.WriteToTextfile(metricsPath, res.Registry); err != nil {
				logrus.Fatalf("write metrics: %v", err)
			}
			logrus.Infof("Metrics written to %s", metricsPath)
		}
		logrus.Info("Simulation complete.")
	},
}

func init() {
	runCmd.Flags().StringVar(&networkPath, "network", "", "Path to the YAML network description")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Master seed (overrides the network file's seed)")
	runCmd.Flags().StringVar(&timeLimit, "time-limit", "", "Simulation time limit, e.g. 10s or 250ms")
	runCmd.Flags().Uint64Var(&eventLimit, "event-limit", 0, "Stop after this many events (0 = unlimited)")
	runCmd.Flags().IntVar(&maxInitStages, "max-init-stages", 0, "Initialization stage limit (0 = default)")
	runCmd.Flags().StringVar(&recordPath, "record", "", "Write the recorded signal trace as YAML to this file")
	runCmd.Flags().StringSliceVar(&recordSignals, "signals", nil, "Comma-separated signals to record and collect (default all)")
	runCmd.Flags().StringVar(&metricsPath, "metrics", "", "Write Prometheus text-format metrics to this file")
	runCmd.Flags().BoolVar(&traceSpans, "trace-spans", false, "Print OpenTelemetry spans of initialization and the run to stderr")

	rootCmd.AddCommand(runCmd)
}

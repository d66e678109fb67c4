package netconf

import (
	"context"
	"testing"

	"github.com/desim-project/desim/sim"
	"github.com/desim-project/desim/sim/internal/testutil"
	"github.com/desim-project/desim/sim/models"
	"github.com/stretchr/testify/require"
)

// TestGoldenDataset runs every golden network and compares the outcome with
// the hand-derived expectations in testdata/goldendataset.json.
func TestGoldenDataset(t *testing.T) {
	dataset := testutil.LoadGoldenDataset(t)

	for _, tc := range dataset.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			s := sim.NewSimulation(sim.Config{Seed: tc.Seed})
			_, root, err := LoadAndBuild(s, testutil.TestdataPath(t, tc.Network))
			require.NoError(t, err)

			e2e, ok := sim.LookupSignal(models.SignalEndToEndDelay)
			require.True(t, ok)
			var delays []float64
			_, err = s.Subscribe(root, e2e, sim.ListenerFunc(func(_ sim.Component, _ sim.SignalID, v any, _ sim.Time) {
				delays = append(delays, v.(float64))
			}))
			require.NoError(t, err)

			var stop sim.StopCondition
			if tc.TimeLimit != "" {
				stop.TimeLimit, err = sim.ParseTime(tc.TimeLimit)
				require.NoError(t, err)
			}
			reason, err := s.Run(context.Background(), root, stop)
			require.NoError(t, err)

			want := tc.Metrics
			if reason.String() != want.Termination {
				t.Errorf("termination: got %s, want %s", reason, want.Termination)
			}
			if got := s.Stats().Dispatched; got != want.Dispatched {
				t.Errorf("dispatched: got %d, want %d", got, want.Dispatched)
			}

			var received, bits int64
			var busy sim.Time
			s.Walk(func(c sim.Component) bool {
				if sink, ok := c.(*models.Sink); ok {
					received += sink.Received()
					bits += sink.Bits()
				}
				for _, g := range sim.ModuleOf(c).Gates() {
					busy += g.ChannelStats().BusyTime
				}
				return true
			})
			if received != want.Received {
				t.Errorf("received: got %d, want %d", received, want.Received)
			}
			if bits != want.Bits {
				t.Errorf("bits: got %d, want %d", bits, want.Bits)
			}

			testutil.AssertFloat64Equal(t, "sim_time_s", want.SimTimeS, s.Now().Seconds(), 1e-9)
			testutil.AssertFloat64Equal(t, "busy_time_s", want.BusyTimeS, busy.Seconds(), 1e-9)

			require.Len(t, delays, int(want.Received))
			var sum, maxDelay float64
			for _, d := range delays {
				sum += d
				if d > maxDelay {
					maxDelay = d
				}
			}
			testutil.AssertFloat64Equal(t, "e2e_mean_s", want.E2EMeanS, sum/float64(len(delays)), 1e-9)
			testutil.AssertFloat64Equal(t, "e2e_max_s", want.E2EMaxS, maxDelay, 1e-9)
		})
	}
}

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desim-project/desim/sim/topology"
)

func TestParseWeight(t *testing.T) {
	tests := []struct {
		in      string
		want    topology.Weight
		wantErr bool
	}{
		{"", topology.Hops, false},
		{"hops", topology.Hops, false},
		{"delay", topology.Delay, false},
		{"latency", 0, true},
	}
	for _, tc := range tests {
		got, err := parseWeight(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestDescribeTopology_ListsLinks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, describeTopology(&buf, chainNetwork, topology.Hops, "", ""))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "5 modules, 5 links\n"), out)
	assert.Contains(t, out, "chain.src.out -> chain.fanout.in[0] (1)")
	assert.Contains(t, out, "chain.r[1].out[0] -> chain.sink.in[1] (1)")
	assert.NotContains(t, out, "path:")
}

func TestDescribeTopology_ShortestPathDependsOnWeight(t *testing.T) {
	// GIVEN a direct 50ms hop from fanout to sink and a 6ms detour over two relays
	var hops, delay bytes.Buffer

	// WHEN the path is computed by hop count and by delay
	require.NoError(t, describeTopology(&hops, chainNetwork, topology.Hops, "src", "sink"))
	require.NoError(t, describeTopology(&delay, chainNetwork, topology.Delay, "src", "sink"))

	// THEN hop count takes the direct hop and delay takes the detour
	assert.Contains(t, hops.String(), "path: chain.src -> chain.fanout -> chain.sink (weight 2)")
	assert.Contains(t, delay.String(), "path: chain.src -> chain.fanout -> chain.r[0] -> chain.r[1] -> chain.sink")
}

func TestDescribeTopology_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorContains(t, describeTopology(&buf, chainNetwork, topology.Hops, "src", "nowhere"), `no module "nowhere"`)
	assert.ErrorContains(t, describeTopology(&buf, chainNetwork, topology.Hops, "sink", "src"), "unreachable")

	assert.ErrorContains(t, describeTopology(&buf, "missing.yaml", topology.Hops, "", ""), "reading network spec")
}

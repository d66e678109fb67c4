package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/desim-project/desim/sim"
	"github.com/desim-project/desim/sim/netconf"
	"github.com/desim-project/desim/sim/topology"
)

var (
	topoWeight string // Edge weight: hops or delay
	topoFrom   string // Source module path, relative to the root
	topoTo     string // Destination module path, relative to the root
)

func parseWeight(s string) (topology.Weight, error) {
	switch s {
	case "", "hops":
		return topology.Hops, nil
	case "delay":
		return topology.Delay, nil
	}
	return 0, fmt.Errorf("unknown weight %q (want hops or delay)", s)
}

// describeTopology builds the network at path, prints its links and, when
// from and to are set, the shortest path between the two modules.
func describeTopology(w io.Writer, path string, weight topology.Weight, from, to string) error {
	s := sim.NewSimulation(sim.Config{Name: "topology"})
	_, root, err := netconf.LoadAndBuild(s, path)
	if err != nil {
		return err
	}
	topo := topology.Extract(s, weight)
	fmt.Fprintf(w, "%d modules, %d links\n", topo.NodeCount(), len(topo.Links()))
	for _, l := range topo.Links() {
		fmt.Fprintf(w, "  %s -> %s (%g)\n", l.Gate.FullPath(), l.Gate.Peer().FullPath(), l.Weight)
	}
	if from == "" && to == "" {
		return nil
	}

	src := sim.ModuleOf(root).ModuleByPath(from)
	if src == nil {
		return fmt.Errorf("no module %q", from)
	}
	dst := sim.ModuleOf(root).ModuleByPath(to)
	if dst == nil {
		return fmt.Errorf("no module %q", to)
	}
	hops, total, err := topo.ShortestPath(src, dst)
	if err != nil {
		return err
	}
	names := make([]string, len(hops))
	for i, c := range hops {
		names[i] = sim.PathOf(c)
	}
	fmt.Fprintf(w, "path: %s (weight %g)\n", strings.Join(names, " -> "), total)
	return nil
}

// topologyCmd prints the connection graph of a network file
var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Print the module connection graph and shortest paths of a network",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if networkPath == "" {
			logrus.Fatalf("--network is required")
		}
		weight, err := parseWeight(topoWeight)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if (topoFrom == "") != (topoTo == "") {
			logrus.Fatalf("--from and --to must be given together")
		}
		if err := describeTopology(cmd.OutOrStdout(), networkPath, weight, topoFrom, topoTo); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func init() {
	topologyCmd.Flags().StringVar(&networkPath, "network", "", "Path to the YAML network description")
	topologyCmd.Flags().StringVar(&topoWeight, "weight", "hops", "Edge weight for shortest paths (hops, delay)")
	topologyCmd.Flags().StringVar(&topoFrom, "from", "", "Source module path, e.g. host[0]")
	topologyCmd.Flags().StringVar(&topoTo, "to", "", "Destination module path, e.g. sink")

	rootCmd.AddCommand(topologyCmd)
}

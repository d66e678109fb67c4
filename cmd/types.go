package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/desim-project/desim/sim"
)

// writeModuleTypes prints each type with its gates, parameters and signals.
func writeModuleTypes(w io.Writer, types []*sim.ModuleType) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Doc)
		for _, g := range t.Gates {
			name := g.Name
			if g.Vector {
				name = fmt.Sprintf("%s[%d]", g.Name, g.Size)
			}
			fmt.Fprintf(tw, "  gate\t%s\t%s\n", name, g.Dir)
		}
		for _, p := range t.Params {
			def := p.Default
			switch {
			case p.NeedsValue():
				def = "(required)"
			case def == "":
				def = `""`
			}
			extra := p.Unit
			if p.Volatile {
				extra = strings.TrimSpace(extra + " volatile")
			}
			fmt.Fprintf(tw, "  param\t%s %s\t= %s\t%s\n", p.Name, p.Kind, def, extra)
		}
		for _, sm := range t.Submodules {
			name := sm.Name
			if sm.Vector {
				name = fmt.Sprintf("%s[%d]", sm.Name, sm.Size)
			}
			fmt.Fprintf(tw, "  submodule\t%s\t%s\n", name, sm.Type)
		}
		for _, s := range t.Signals {
			fmt.Fprintf(tw, "  signal\t%s\n", s)
		}
	}
	return tw.Flush()
}

// typesCmd lists the registered module types
var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the module types available to network files",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if err := writeModuleTypes(cmd.OutOrStdout(), sim.ModuleTypes()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// signalsCmd lists the registered signals
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List the registered signal names",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		for _, name := range sim.SignalNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(signalsCmd)
}

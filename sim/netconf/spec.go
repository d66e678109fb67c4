// Package netconf loads YAML network descriptions and builds them into a
// simulation: it constructs the root, the modules and module arrays, and
// wires the connections through the configured channels.
package netconf

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/desim-project/desim/sim"
	"gopkg.in/yaml.v3"
)

// NetworkSpec is the top-level network description.
type NetworkSpec struct {
	Name        string                 `yaml:"name"`
	Seed        *int64                 `yaml:"seed,omitempty"`
	Root        RootSpec               `yaml:"root"`
	Modules     []ModuleSpec           `yaml:"modules"`
	Channels    map[string]ChannelSpec `yaml:"channels,omitempty"`
	Connections []ConnectionSpec       `yaml:"connections"`
}

// RootSpec selects the type and parameters of the root module.
type RootSpec struct {
	Type   string            `yaml:"type"`
	Params map[string]string `yaml:"params,omitempty"`
}

// ModuleSpec declares a submodule of the root. With Size set the module
// becomes a ComponentArray of that many elements.
type ModuleSpec struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Size   *int              `yaml:"size,omitempty"`
	Params map[string]string `yaml:"params,omitempty"`
}

// ChannelSpec describes a channel. Type is ideal, delay or transmission;
// times use the sim.ParseTime syntax.
type ChannelSpec struct {
	Type     string  `yaml:"type"`
	Delay    string  `yaml:"delay,omitempty"`
	Datarate float64 `yaml:"datarate,omitempty"`
	BER      float64 `yaml:"ber,omitempty"`
	PER      float64 `yaml:"per,omitempty"`
	Jitter   string  `yaml:"jitter,omitempty"`
	Disabled bool    `yaml:"disabled,omitempty"`
}

// ConnectionSpec wires From to To. Gate references have the form
// "module.gate", "module[2].gate[1]" or, on either side, "module.gate++"
// for the first free element of a gate vector. Channel is an inline channel;
// Use names an entry of NetworkSpec.Channels. Neither means a direct connection.
type ConnectionSpec struct {
	From    string       `yaml:"from"`
	To      string       `yaml:"to"`
	Channel *ChannelSpec `yaml:"channel,omitempty"`
	Use     string       `yaml:"use,omitempty"`
}

const defaultRootType = "Network"

// LoadNetworkSpec reads and parses a YAML network description file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadNetworkSpec(path string) (*NetworkSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network spec: %w", err)
	}
	spec, err := ParseNetworkSpec(data)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// ParseNetworkSpec parses a YAML network description.
func ParseNetworkSpec(data []byte) (*NetworkSpec, error) {
	var spec NetworkSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing network spec: %w", err)
	}
	if spec.Root.Type == "" {
		spec.Root.Type = defaultRootType
	}
	if spec.Name == "" {
		spec.Name = "net"
	}
	return &spec, nil
}

// Validate checks names, types, channel parameters and connection
// references without building anything.
func (n *NetworkSpec) Validate() error {
	if !validName(n.Name) {
		return fmt.Errorf("invalid network name %q", n.Name)
	}
	if _, err := sim.LookupModuleType(n.Root.Type); err != nil {
		return fmt.Errorf("root: %w", err)
	}
	seen := make(map[string]bool)
	for i, m := range n.Modules {
		if !validName(m.Name) {
			return fmt.Errorf("modules[%d]: invalid name %q", i, m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("modules[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if _, err := sim.LookupModuleType(m.Type); err != nil {
			return fmt.Errorf("modules[%d] (%s): %w", i, m.Name, err)
		}
		if m.Size != nil && *m.Size < 0 {
			return fmt.Errorf("modules[%d] (%s): size must be non-negative, got %d", i, m.Name, *m.Size)
		}
	}
	for _, name := range sortedKeys(n.Channels) {
		if _, err := n.Channels[name].Build(); err != nil {
			return fmt.Errorf("channels[%s]: %w", name, err)
		}
	}
	for i, c := range n.Connections {
		if c.From == "" || c.To == "" {
			return fmt.Errorf("connections[%d]: from and to are required", i)
		}
		if c.Channel != nil && c.Use != "" {
			return fmt.Errorf("connections[%d]: channel and use are mutually exclusive", i)
		}
		if c.Use != "" {
			if _, ok := n.Channels[c.Use]; !ok {
				return fmt.Errorf("connections[%d]: unknown channel %q", i, c.Use)
			}
		}
		if c.Channel != nil {
			if _, err := c.Channel.Build(); err != nil {
				return fmt.Errorf("connections[%d]: %w", i, err)
			}
		}
		for _, ref := range []string{c.From, c.To} {
			gr, err := parseGateRef(ref)
			if err != nil {
				return fmt.Errorf("connections[%d]: %w", i, err)
			}
			if !seen[gr.root()] {
				return fmt.Errorf("connections[%d]: %q: unknown module %q", i, ref, gr.root())
			}
		}
	}
	return nil
}

// Build creates a fresh channel from the description.
func (c ChannelSpec) Build() (sim.Channel, error) {
	delay, err := optionalTime(c.Delay)
	if err != nil {
		return nil, fmt.Errorf("delay: %w", err)
	}
	jitter, err := optionalTime(c.Jitter)
	if err != nil {
		return nil, fmt.Errorf("jitter: %w", err)
	}
	if math.IsNaN(c.Datarate) || math.IsInf(c.Datarate, 0) {
		return nil, fmt.Errorf("datarate must be finite, got %f", c.Datarate)
	}
	switch strings.ToLower(c.Type) {
	case "ideal":
		if delay != 0 || jitter != 0 || c.Datarate != 0 || c.BER != 0 || c.PER != 0 || c.Disabled {
			return nil, fmt.Errorf("ideal channel takes no parameters")
		}
		return &sim.IdealChannel{}, nil
	case "delay", "":
		if jitter != 0 || c.Datarate != 0 || c.BER != 0 || c.PER != 0 {
			return nil, fmt.Errorf("delay channel takes only delay and disabled")
		}
		ch := &sim.DelayChannel{Delay: delay, Disabled: c.Disabled}
		return ch, ch.Validate()
	case "transmission":
		ch := &sim.TransmissionChannel{
			Delay:    delay,
			Datarate: c.Datarate,
			BER:      c.BER,
			PER:      c.PER,
			Jitter:   jitter,
			Disabled: c.Disabled,
		}
		return ch, ch.Validate()
	}
	return nil, fmt.Errorf("unknown channel type %q; valid: ideal, delay, transmission", c.Type)
}

func optionalTime(s string) (sim.Time, error) {
	if s == "" {
		return 0, nil
	}
	return sim.ParseTime(s)
}

func validName(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".[]+ \t")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package sim

import (
	"hash/fnv"
	"math/rand"
	"sort"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same key and the same network MUST produce identical
// event sequences.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// Stream name prefixes used by the kernel.
const (
	// StreamModulePrefix prefixes the full path of a module to name its stream.
	StreamModulePrefix = "module:"
	// StreamChannelPrefix prefixes the full path of a sending gate to name
	// the stream its channel draws jitter and bit errors from.
	StreamChannelPrefix = "channel:"
	// StreamParamPrefix prefixes "<module path>.<parameter>" to name the
	// stream a random parameter is drawn from.
	StreamParamPrefix = "param:"
)

// PartitionedRNG hands out independently seeded random streams by name.
//
// Each stream is seeded with masterSeed XOR fnv1a64(name), so draws on one
// stream never shift another stream's sequence no matter how listener- or
// handler-triggered computation interleaves across components.
//
// Thread-safety: NOT thread-safe. Owned by a single Simulation.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[string]*rand.Rand),
	}
}

// Stream returns the stream for name, creating it on first use.
// The same name always returns the same *rand.Rand. Never returns nil.
func (p *PartitionedRNG) Stream(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.streams[name] = rng
	return rng
}

// Names returns the names of the streams created so far, sorted.
func (p *PartitionedRNG) Names() []string {
	names := make([]string, 0, len(p.streams))
	for name := range p.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// Reset drops every stream so that the next Stream call starts each
// sequence from its seed again.
func (p *PartitionedRNG) Reset() {
	p.streams = make(map[string]*rand.Rand)
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

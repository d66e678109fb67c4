// Package sim provides the discrete-event simulation kernel for desim.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - simulation.go: the run-scoped context (clock, future event list, component arena, RNG streams)
//   - run.go: the dispatch loop, stop conditions and termination reasons
//   - module.go: the Module base every component embeds, ownership and path naming
//   - gate.go / channel.go: ports, connections and the transmission protocol
//   - message.go: Msg and Packet, duplication and encapsulation
//   - signal.go: signal registry, listeners and emission along the ownership chain
//   - init.go: the multi-stage initialization protocol
//
// # Architecture
//
// A Simulation owns every component in an arena indexed by ComponentID. Owners
// keep child ids; children keep their owner's id. Gates hold a non-owning pointer
// to their peer. Component types are described once by a ModuleType descriptor
// (gates, parameters, static submodules, signals) and registered by name, usually
// from an init() function in the package that implements them (see sim/models).
//
// Model code reacts to events through small capability interfaces:
//   - Handler: receives messages delivered by the dispatch loop
//   - Initializer: takes part in the staged initialization passes
//   - Finisher: called once after the loop ends
//
// The kernel is single-threaded. Nothing in a Simulation may be touched from
// more than one goroutine; only the signal and module type registries are
// process-wide and locked.
package sim

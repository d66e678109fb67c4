// Package models holds the reference components used by the desim CLI and by
// integration tests: a packet Source, a Sink, an Echo and a round-robin Relay.
// Importing the package registers their module types.
package models

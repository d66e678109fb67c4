package models

import "github.com/desim-project/desim/sim"

// Message kinds used by the reference models.
const (
	KindData  = 0
	KindTimer = 1
)

// Signal names emitted by the reference models.
const (
	SignalPacketSent      = "packetSent"
	SignalPacketReceived  = "packetReceived"
	SignalEndToEndDelay   = "endToEndDelay"
	SignalPacketForwarded = "packetForwarded"
	SignalPacketEchoed    = "packetEchoed"
)

var (
	packetSentSignal      = sim.RegisterSignal(SignalPacketSent)
	packetReceivedSignal  = sim.RegisterSignal(SignalPacketReceived)
	endToEndDelaySignal   = sim.RegisterSignal(SignalEndToEndDelay)
	packetForwardedSignal = sim.RegisterSignal(SignalPacketForwarded)
	packetEchoedSignal    = sim.RegisterSignal(SignalPacketEchoed)
)

func init() {
	sim.MustRegisterModuleType(SourceType)
	sim.MustRegisterModuleType(SinkType)
	sim.MustRegisterModuleType(EchoType)
	sim.MustRegisterModuleType(RelayType)
}

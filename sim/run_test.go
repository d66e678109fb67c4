package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PingPongOverDelayChannels(t *testing.T) {
	// GIVEN A and B connected both ways through 0.1s delay channels
	s, root := newTestSim(t)
	a := addNode(t, s, root, "A")
	b := addNode(t, s, root, "B")
	require.NoError(t, s.Connect(mustGate(t, a, "out"), mustGate(t, b, "in"), &DelayChannel{Delay: 100 * Millisecond}))
	require.NoError(t, s.Connect(mustGate(t, b, "out"), mustGate(t, a, "in"), &DelayChannel{Delay: 100 * Millisecond}))
	b.onMessage = func(n *testNode, msg Message) error {
		dup, err := Duplicate(msg)
		if err != nil {
			return err
		}
		MsgOf(dup).SetName("echo")
		return n.Send(dup, "out")
	}
	a.onInit = func(n *testNode, stage int) error {
		return n.Send(n.NewMsg("hello", 0), "out")
	}

	// WHEN running to completion
	reason, err := s.Run(context.Background(), nil, StopCondition{})
	require.NoError(t, err)

	// THEN B sees the message at 0.1s and A the echo at 0.2s
	assert.Equal(t, EmptyFEL, reason)
	assert.Equal(t, []arrival{{at: 100 * Millisecond, name: "hello", gate: "in"}}, b.arrivals)
	assert.Equal(t, []arrival{{at: 200 * Millisecond, name: "echo", gate: "in"}}, a.arrivals)
	assert.Equal(t, 200*Millisecond, s.Now())
	assert.Equal(t, 1, a.finished)
	assert.Equal(t, 1, b.finished)
}

func TestRun_CancelledTimerNeverFires(t *testing.T) {
	// GIVEN a timer at t=5 and a second event at t=2 that cancels it
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	timer := NewMsg("timer", 0, 0)
	n.onInit = func(n *testNode, stage int) error {
		if _, err := n.Schedule(5*Second, timer); err != nil {
			return err
		}
		_, err := n.Schedule(2*Second, NewMsg("cancel", 0, 0))
		return err
	}
	n.onMessage = func(n *testNode, msg Message) error {
		if MsgOf(msg).Name() == "cancel" {
			assert.True(t, n.CancelMessage(timer))
		}
		return nil
	}

	// WHEN running to t=10
	_, err := s.Run(context.Background(), nil, StopCondition{TimeLimit: 10 * Second})
	require.NoError(t, err)

	// THEN the timer was never dispatched
	for _, a := range n.arrivals {
		assert.NotEqual(t, "timer", a.name)
	}
	assert.Len(t, n.arrivals, 1)
	assert.Equal(t, uint64(1), s.Stats().Cancelled)
}

func TestRun_TimeLimit(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	for _, at := range []Time{Second, 2 * Second, 3 * Second} {
		_, err := s.ScheduleAt(at, n, NewMsg(at.String(), 0, 0))
		require.NoError(t, err)
	}

	reason, err := s.Run(context.Background(), nil, StopCondition{TimeLimit: 2 * Second})
	require.NoError(t, err)
	assert.Equal(t, TimeLimitReached, reason)
	assert.Len(t, n.arrivals, 2, "an event exactly at the limit is dispatched")
	assert.Equal(t, 2*Second, s.Now())
	assert.Equal(t, 1, s.FELLen())
}

func TestRun_TimeLimitAdvancesIdleClock(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	_, err := s.ScheduleAt(9*Second, n, NewMsg("late", 0, 0))
	require.NoError(t, err)

	reason, err := s.Run(context.Background(), nil, StopCondition{TimeLimit: 4 * Second})
	require.NoError(t, err)
	assert.Equal(t, TimeLimitReached, reason)
	assert.Equal(t, 4*Second, s.Now())
}

func TestRun_EventLimit(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	n.onMessage = func(n *testNode, msg Message) error {
		_, err := n.Schedule(Second, NewMsg("again", 0, 0))
		return err
	}
	_, err := n.Schedule(0, NewMsg("first", 0, 0))
	require.NoError(t, err)

	reason, err := s.Run(context.Background(), nil, StopCondition{EventLimit: 5})
	require.NoError(t, err)
	assert.Equal(t, EventLimitReached, reason)
	assert.Equal(t, uint64(5), s.EventCount())
	assert.Equal(t, 4*Second, s.Now())
}

func TestRun_UntilPredicate(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	for i := 1; i <= 5; i++ {
		_, err := s.ScheduleAt(Time(i)*Second, n, NewMsg("m", 0, 0))
		require.NoError(t, err)
	}
	reason, err := s.Run(context.Background(), nil, StopCondition{
		Until: func(s *Simulation) bool { return s.Now() >= 3*Second },
	})
	require.NoError(t, err)
	assert.Equal(t, PredicateSatisfied, reason)
	assert.Len(t, n.arrivals, 3)
}

func TestRun_EndRequested(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	n.onMessage = func(n *testNode, msg Message) error {
		if MsgOf(msg).Name() == "stop" {
			n.EndSimulation()
		}
		return nil
	}
	_, err := s.ScheduleAt(Second, n, NewMsg("stop", 0, 0))
	require.NoError(t, err)
	_, err = s.ScheduleAt(2*Second, n, NewMsg("never", 0, 0))
	require.NoError(t, err)

	reason, err := s.Run(context.Background(), nil, StopCondition{})
	require.NoError(t, err)
	assert.Equal(t, EndRequested, reason)
	assert.Len(t, n.arrivals, 1)
	assert.Equal(t, 1, n.finished, "Finish runs after a requested end")
}

func TestRun_Interrupted(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.onMessage = func(*testNode, Message) error {
		cancel()
		return nil
	}
	for i := 1; i <= 3; i++ {
		_, err := s.ScheduleAt(Time(i)*Second, n, NewMsg("m", 0, 0))
		require.NoError(t, err)
	}

	reason, err := s.Run(ctx, nil, StopCondition{})
	require.NoError(t, err)
	assert.Equal(t, Interrupted, reason)
	assert.Len(t, n.arrivals, 1)
}

func TestRun_HandlerErrorFails(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	boom := errors.New("boom")
	n.onMessage = func(*testNode, Message) error { return boom }
	_, err := s.ScheduleAt(Second, n, NewMsg("m", 0, 0))
	require.NoError(t, err)

	reason, err := s.Run(context.Background(), nil, StopCondition{})
	assert.Equal(t, Failed, reason)
	require.ErrorIs(t, err, boom)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Second, se.Time)
	assert.Equal(t, "net.n", se.Path)
	assert.Equal(t, 0, n.finished)
}

func TestRun_FailedRunNeedsReset(t *testing.T) {
	// GIVEN a handler that fails at 1s with another event pending at 2s
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	boom := errors.New("boom")
	n.onMessage = func(_ *testNode, msg Message) error {
		if MsgOf(msg).Name() == "boom" {
			return boom
		}
		return nil
	}
	_, err := s.ScheduleAt(Second, n, NewMsg("boom", 0, 0))
	require.NoError(t, err)
	_, err = s.ScheduleAt(2*Second, n, NewMsg("after", 0, 0))
	require.NoError(t, err)

	reason, err := s.Run(context.Background(), nil, StopCondition{})
	assert.Equal(t, Failed, reason)
	require.ErrorIs(t, err, boom)

	// WHEN running again without a Reset
	reason, err = s.Run(context.Background(), nil, StopCondition{})

	// THEN the run is refused and the pending event stays undelivered
	assert.Equal(t, Failed, reason)
	assert.ErrorContains(t, err, "previous run failed")
	require.Len(t, n.arrivals, 1)
	assert.Equal(t, "boom", n.arrivals[0].name)
	assert.Equal(t, Second, s.Now())
	assert.Equal(t, 0, n.finished)

	// and a Reset makes the simulation runnable again
	s.Reset()
	reason, err = s.Run(context.Background(), nil, StopCondition{})
	require.NoError(t, err)
	assert.Equal(t, EmptyFEL, reason)
	assert.Equal(t, 1, n.finished)
}

func TestRun_EventInThePastFails(t *testing.T) {
	// GIVEN a handler at 2s that slips an event for 1s into the FEL
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	n.onMessage = func(n *testNode, _ Message) error {
		s.fel.Insert(&Event{time: Second, seq: 99, target: n.id})
		return nil
	}
	_, err := s.ScheduleAt(2*Second, n, NewMsg("m", 0, 0))
	require.NoError(t, err)

	// WHEN the run pops the stale event
	reason, err := s.Run(context.Background(), nil, StopCondition{})

	// THEN it fails with the current time and the target's path attached
	assert.Equal(t, Failed, reason)
	require.ErrorIs(t, err, ErrNonMonotonicTime)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2*Second, se.Time)
	assert.Equal(t, "net.n", se.Path)
	assert.Equal(t, 2*Second, s.Now(), "the clock never moves backwards")
	assert.Equal(t, 0, n.finished)
}

func TestRun_MessageToNonHandlerIsDropped(t *testing.T) {
	s, root := newTestSim(t)
	p, err := s.Construct("testPassive", "p", root, nil)
	require.NoError(t, err)
	_, err = s.ScheduleAt(Second, p, NewMsg("m", 0, 0))
	require.NoError(t, err)

	reason, err := s.Run(context.Background(), nil, StopCondition{})
	require.NoError(t, err)
	assert.Equal(t, EmptyFEL, reason)
	assert.Equal(t, uint64(1), s.Stats().Dropped)
	assert.Equal(t, uint64(0), s.Stats().Dispatched)
	assert.Equal(t, uint64(1), s.EventCount())
}

func TestRun_RootChecks(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	_, err := s.Run(context.Background(), n, StopCondition{})
	assert.ErrorIs(t, err, ErrUnknownComponent)

	_, err = s.Run(context.Background(), root, StopCondition{})
	require.NoError(t, err)
	_, err = s.Run(context.Background(), root, StopCondition{})
	assert.Error(t, err, "a finished simulation must be Reset first")
}

func TestRun_ResetReproducesRun(t *testing.T) {
	// GIVEN a node drawing random delays from its stream
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	var draws []Time
	n.onInit = func(n *testNode, stage int) error {
		_, err := n.Schedule(0, NewMsg("tick", 0, 0))
		return err
	}
	n.onMessage = func(n *testNode, msg Message) error {
		d := Time(n.RNG().Int63n(int64(Second)))
		draws = append(draws, d)
		if len(draws)%4 == 0 {
			return nil
		}
		_, err := n.Schedule(d, NewMsg("tick", 0, 0))
		return err
	}

	// WHEN running, resetting and running again
	_, err := s.Run(context.Background(), nil, StopCondition{})
	require.NoError(t, err)
	first := append([]Time(nil), draws...)
	firstEnd := s.Now()
	s.Reset()
	assert.Equal(t, Time(0), s.Now())
	_, err = s.Run(context.Background(), nil, StopCondition{})
	require.NoError(t, err)

	// THEN both runs drew the same values and ended at the same time
	require.Len(t, draws, 8)
	assert.Equal(t, first, draws[4:])
	assert.Equal(t, firstEnd, s.Now())
	assert.Equal(t, 2, n.finished)
}

func TestTermination_String(t *testing.T) {
	assert.Equal(t, "time-limit", TimeLimitReached.String())
	assert.Equal(t, "empty-fel", EmptyFEL.String())
	assert.Equal(t, "Termination(42)", Termination(42).String())
}

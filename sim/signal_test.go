package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSignal_Idempotent(t *testing.T) {
	a := RegisterSignal("signalTestIdem")
	b := RegisterSignal("signalTestIdem")
	assert.Equal(t, a, b)
	got, ok := LookupSignal("signalTestIdem")
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, "signalTestIdem", a.String())
	assert.Contains(t, SignalNames(), "signalTestIdem")
	_, ok = LookupSignal("signalTestNeverRegistered")
	assert.False(t, ok)
}

func TestEmit_ReachesAncestorsNotSiblings(t *testing.T) {
	// GIVEN a parent with two children, L on the parent and L2 on the sibling
	s, root := newTestSim(t)
	parent := addNode(t, s, root, "parent")
	m := addNode(t, s, parent, "m")
	sibling := addNode(t, s, parent, "sibling")
	sig := RegisterSignal("signalTestScope")

	var l, l2 signalLog
	_, err := parent.Subscribe(sig, &l)
	require.NoError(t, err)
	_, err = sibling.Subscribe(sig, &l2)
	require.NoError(t, err)

	// WHEN m emits
	m.Emit(sig, 42)

	// THEN only the ancestor's listener sees it, with m as the source
	assert.Equal(t, []any{42}, l.values)
	assert.Equal(t, []string{"net.parent.m"}, l.sources)
	assert.Empty(t, l2.values)
	assert.True(t, m.MayHaveListeners(sig))
	assert.True(t, sibling.MayHaveListeners(sig))
	assert.False(t, ModuleOf(root).MayHaveListeners(sig))
}

func TestEmit_NearestFirst(t *testing.T) {
	s, root := newTestSim(t)
	parent := addNode(t, s, root, "parent")
	child := addNode(t, s, parent, "child")
	sig := RegisterSignal("signalTestOrder")

	var order []string
	for _, c := range []Component{root, parent, child} {
		path := PathOf(c)
		_, err := s.Subscribe(c, sig, ListenerFunc(func(Component, SignalID, any, Time) {
			order = append(order, path)
		}))
		require.NoError(t, err)
	}
	child.Emit(sig, nil)
	assert.Equal(t, []string{"net.parent.child", "net.parent", "net"}, order)
}

func TestEmit_NoListenersIsNoOp(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	sig := RegisterSignal("signalTestSilent")
	assert.False(t, n.MayHaveListeners(sig))
	assert.NotPanics(t, func() { n.Emit(sig, "ignored") })
}

func TestUnsubscribe(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	sig := RegisterSignal("signalTestUnsub")

	var l signalLog
	h, err := n.Subscribe(sig, &l)
	require.NoError(t, err)
	n.Emit(sig, 1)
	assert.True(t, n.Unsubscribe(sig, h))
	assert.False(t, n.Unsubscribe(sig, h))
	n.Emit(sig, 2)

	assert.Equal(t, []any{1}, l.values)
	assert.False(t, n.MayHaveListeners(sig))
}

func TestUnsubscribe_ForeignComponentIsUntouched(t *testing.T) {
	// GIVEN two simulations whose first subscriptions get the same handle
	s1, root1 := newTestSim(t)
	n1 := addNode(t, s1, root1, "n")
	s2, root2 := newTestSim(t)
	n2 := addNode(t, s2, root2, "n")
	sig := RegisterSignal("signalTestForeignUnsub")

	var l1, l2 signalLog
	h1, err := n1.Subscribe(sig, &l1)
	require.NoError(t, err)
	h2, err := n2.Subscribe(sig, &l2)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	// WHEN the second simulation is asked to drop a binding on the first's component
	removed := s2.Unsubscribe(n1, sig, h1)

	// THEN nothing is removed and both simulations keep delivering
	assert.False(t, removed)
	assert.False(t, s2.Unsubscribe(nil, sig, h1))
	n1.Emit(sig, 1)
	n2.Emit(sig, 2)
	assert.Equal(t, []any{1}, l1.values)
	assert.Equal(t, []any{2}, l2.values)
	assert.True(t, n1.MayHaveListeners(sig))
	assert.True(t, n2.MayHaveListeners(sig))
}

func TestUnsubscribe_DuringEmitKeepsCurrentDelivery(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	sig := RegisterSignal("signalTestUnsubDuring")

	var second signalLog
	var h2 ListenerHandle
	_, err := n.Subscribe(sig, ListenerFunc(func(Component, SignalID, any, Time) {
		n.Unsubscribe(sig, h2)
	}))
	require.NoError(t, err)
	h2, err = n.Subscribe(sig, &second)
	require.NoError(t, err)

	n.Emit(sig, "first")
	n.Emit(sig, "second")
	assert.Equal(t, []any{"first"}, second.values)
}

func TestSubscribe_Errors(t *testing.T) {
	s, root := newTestSim(t)
	n := addNode(t, s, root, "n")
	_, err := n.Subscribe(RegisterSignal("signalTestErr"), nil)
	assert.Error(t, err)
	_, err = n.Subscribe(SignalID(1<<30), &signalLog{})
	assert.Error(t, err)
	_, err = s.Subscribe(nil, RegisterSignal("signalTestErr"), &signalLog{})
	assert.ErrorIs(t, err, ErrUnknownComponent)
}

package coordfree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"rhizo/internal/algebraic"
	"rhizo/internal/coordfree"
)

func TestLocalCommitAppliesAndIncrementsClock(t *testing.T) {
	n := coordfree.NewNode("A")
	update, err := n.LocalCommit([]coordfree.Operation{
		{Key: "counter", Op: algebraic.AbelianAdd, Value: algebraic.Int(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), update.Clock.Get("A"))
	assert.True(t, n.Get("counter").Equal(algebraic.Int(5)))
}

func TestLocalCommitRejectsEmptyAndNonAlgebraic(t *testing.T) {
	n := coordfree.NewNode("A")
	_, err := n.LocalCommit(nil)
	assert.Error(t, err)

	_, err = n.LocalCommit([]coordfree.Operation{{Key: "x", Op: algebraic.GenericOverwrite, Value: algebraic.Int(1)}})
	assert.Error(t, err)
	assert.Equal(t, uint64(0), n.Clock().Get("A"))
}

func TestScenarioS1CounterMergeBothOrders(t *testing.T) {
	a := coordfree.NewNode("A")
	b := coordfree.NewNode("B")

	ua, err := a.LocalCommit([]coordfree.Operation{{Key: "counter", Op: algebraic.AbelianAdd, Value: algebraic.Int(5)}})
	require.NoError(t, err)
	ub, err := b.LocalCommit([]coordfree.Operation{{Key: "counter", Op: algebraic.AbelianAdd, Value: algebraic.Int(3)}})
	require.NoError(t, err)

	m1, err := coordfree.Merge(ua, ub)
	require.NoError(t, err)
	m2, err := coordfree.Merge(ub, ua)
	require.NoError(t, err)

	require.Len(t, m1.Operations, 1)
	assert.Equal(t, "counter", m1.Operations[0].Key)
	assert.True(t, m1.Operations[0].Value.Equal(algebraic.Int(8)))
	assert.Equal(t, uint64(1), m1.Clock.Get("A"))
	assert.Equal(t, uint64(1), m1.Clock.Get("B"))

	require.Len(t, m2.Operations, 1)
	assert.True(t, m2.Operations[0].Value.Equal(algebraic.Int(8)))
}

func TestMergeRejectsOpTypeMismatch(t *testing.T) {
	u1 := coordfree.VersionedUpdate{Origin: "A", Operations: []coordfree.Operation{
		{Key: "x", Op: algebraic.AbelianAdd, Value: algebraic.Int(1)},
	}}
	u2 := coordfree.VersionedUpdate{Origin: "B", Operations: []coordfree.Operation{
		{Key: "x", Op: algebraic.SemilatticeMax, Value: algebraic.Int(2)},
	}}
	_, err := coordfree.Merge(u1, u2)
	assert.Error(t, err)
}

func TestReceiveMergesClockAndDeduplicates(t *testing.T) {
	a := coordfree.NewNode("A")
	b := coordfree.NewNode("B")

	update, err := a.LocalCommit([]coordfree.Operation{{Key: "signal", Op: algebraic.AbelianAdd, Value: algebraic.Int(42)}})
	require.NoError(t, err)

	require.NoError(t, b.Receive(update))
	assert.True(t, b.Get("signal").Equal(algebraic.Int(42)))

	// Applying the same update twice leaves state unchanged.
	require.NoError(t, b.Receive(update))
	assert.True(t, b.Get("signal").Equal(algebraic.Int(42)))
}

func TestOutboxDrainsAndRequeueAllRestores(t *testing.T) {
	a := coordfree.NewNode("A")
	_, err := a.LocalCommit([]coordfree.Operation{{Key: "x", Op: algebraic.AbelianAdd, Value: algebraic.Int(1)}})
	require.NoError(t, err)

	out := a.Outbox()
	require.Len(t, out, 1)
	assert.Empty(t, a.Outbox())

	a.RequeueAllUpdates()
	assert.Len(t, a.Outbox(), 1)
}

func TestConvergenceAcrossPermutations(t *testing.T) {
	a := coordfree.NewNode("A")
	b := coordfree.NewNode("B")
	c := coordfree.NewNode("C")

	ua, err := a.LocalCommit([]coordfree.Operation{{Key: "tags", Op: algebraic.SemilatticeUnion, Value: algebraic.StringSet("x")}})
	require.NoError(t, err)
	ub, err := b.LocalCommit([]coordfree.Operation{{Key: "tags", Op: algebraic.SemilatticeUnion, Value: algebraic.StringSet("y")}})
	require.NoError(t, err)
	uc, err := c.LocalCommit([]coordfree.Operation{{Key: "tags", Op: algebraic.SemilatticeUnion, Value: algebraic.StringSet("z")}})
	require.NoError(t, err)

	order1, err := coordfree.MergeAll([]coordfree.VersionedUpdate{ua, ub, uc})
	require.NoError(t, err)
	order2, err := coordfree.MergeAll([]coordfree.VersionedUpdate{uc, ua, ub})
	require.NoError(t, err)

	assert.True(t, order1.Operations[0].Value.Equal(order2.Operations[0].Value))
	assert.Equal(t, 3, len(order1.Operations[0].Value.StringSet))
}

func TestReceiveWithMeterStillAppliesUpdate(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	a := coordfree.NewNode("A")
	b := coordfree.NewNode("B", coordfree.WithMeter(meter))

	update, err := a.LocalCommit([]coordfree.Operation{{Key: "counter", Op: algebraic.AbelianAdd, Value: algebraic.Int(7)}})
	require.NoError(t, err)

	require.NoError(t, b.Receive(update))
	assert.True(t, b.Get("counter").Equal(algebraic.Int(7)))
}

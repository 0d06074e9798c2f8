package simulation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhizo/internal/algebraic"
	"rhizo/internal/coordfree"
	"rhizo/internal/simulation"
)

// TestChainConvergence is scenario S7: a chain of 5 nodes where only
// adjacent nodes communicate. Node 0 commits {signal: ADD 42}; after
// sufficient propagation rounds every node's signal equals Integer(42).
func TestChainConvergence(t *testing.T) {
	ids := []string{"n0", "n1", "n2", "n3", "n4"}
	c := simulation.NewCluster(ids...)

	// Restrict to a chain topology: only adjacent nodes are linked.
	for i, a := range ids {
		for j, b := range ids {
			if i == j {
				continue
			}
			c.SetLink(a, b, j == i+1 || j == i-1)
		}
	}

	_, err := c.Node("n0").LocalCommit([]coordfree.Operation{
		{Key: "signal", Op: algebraic.AbelianAdd, Value: algebraic.Int(42)},
	})
	require.NoError(t, err)

	require.NoError(t, c.RunRounds(len(ids)))

	for _, id := range ids {
		assert.Equal(t, algebraic.Int(42), c.Node(id).Get("signal"), "node %s did not converge", id)
	}
}

func TestPartitionThenHealStillConverges(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	c := simulation.NewCluster(ids...)

	groupA := []string{"a", "b"}
	groupB := []string{"c", "d"}
	c.Partition(groupA, groupB)

	_, err := c.Node("a").LocalCommit([]coordfree.Operation{
		{Key: "total", Op: algebraic.AbelianAdd, Value: algebraic.Int(10)},
	})
	require.NoError(t, err)
	_, err = c.Node("c").LocalCommit([]coordfree.Operation{
		{Key: "total", Op: algebraic.AbelianAdd, Value: algebraic.Int(7)},
	})
	require.NoError(t, err)

	require.NoError(t, c.RunRounds(3))
	assert.False(t, c.Converged("total"), "partitioned groups should not have converged yet")

	c.Heal(groupA, groupB)
	require.NoError(t, c.RunRounds(4))

	assert.True(t, c.Converged("total"))
	assert.Equal(t, algebraic.Int(17), c.Node("a").Get("total"))
}

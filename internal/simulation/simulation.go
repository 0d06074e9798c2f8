// Package simulation is an in-memory, filesystem-free multi-node harness
// used to exercise the coordination-free protocol's convergence and
// partition-healing guarantees. It drives N coordfree.Node instances
// against an adjacency-list topology, gossiping outboxes between
// reachable neighbors round by round.
package simulation

import (
	"sort"

	"rhizo/internal/coordfree"
)

// Cluster is a fixed set of nodes connected by a mutable adjacency list.
// Edges are undirected: if a is reachable from b, b is reachable from a.
type Cluster struct {
	nodes map[string]*coordfree.Node
	order []string
	edges map[string]map[string]bool
}

// NewCluster returns a cluster with one coordfree.Node per id, fully
// connected (every pair of distinct ids is an edge).
func NewCluster(ids ...string) *Cluster {
	c := &Cluster{
		nodes: make(map[string]*coordfree.Node, len(ids)),
		edges: make(map[string]map[string]bool, len(ids)),
	}
	for _, id := range ids {
		c.nodes[id] = coordfree.NewNode(id)
		c.order = append(c.order, id)
		c.edges[id] = make(map[string]bool)
	}
	for _, a := range ids {
		for _, b := range ids {
			if a != b {
				c.edges[a][b] = true
			}
		}
	}
	return c
}

// Node returns the node with the given id, or nil.
func (c *Cluster) Node(id string) *coordfree.Node { return c.nodes[id] }

// NodeIDs returns every node id in the order the cluster was created.
func (c *Cluster) NodeIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// SetLink sets whether a and b can gossip directly with each other.
func (c *Cluster) SetLink(a, b string, reachable bool) {
	c.edges[a][b] = reachable
	c.edges[b][a] = reachable
}

// Partition disconnects every node in groupA from every node in groupB,
// simulating a network split. Nodes within the same group stay linked.
func (c *Cluster) Partition(groupA, groupB []string) {
	for _, a := range groupA {
		for _, b := range groupB {
			c.SetLink(a, b, false)
		}
	}
}

// Heal restores every link between groupA and groupB, simulating a
// partition healing.
func (c *Cluster) Heal(groupA, groupB []string) {
	for _, a := range groupA {
		for _, b := range groupB {
			c.SetLink(a, b, true)
		}
	}
	// A reconnecting bridge node must re-offer everything it knows, not
	// just what accumulated in its outbox since the split, so transitively
	// learned updates can still cross the now-healed boundary.
	for _, id := range append(append([]string{}, groupA...), groupB...) {
		c.nodes[id].RequeueAllUpdates()
	}
}

// GossipRound drains every node's outbox and delivers it to each
// currently reachable peer, applying updates via Receive. Dedup at the
// receiving node means a round is safe to repeat or run out of order.
func (c *Cluster) GossipRound() error {
	type outgoing struct {
		from    string
		updates []coordfree.VersionedUpdate
	}
	var batches []outgoing
	for _, id := range c.order {
		batches = append(batches, outgoing{from: id, updates: c.nodes[id].Outbox()})
	}

	for _, batch := range batches {
		peers := c.reachablePeers(batch.from)
		for _, peerID := range peers {
			peer := c.nodes[peerID]
			for _, u := range batch.updates {
				if err := peer.Receive(u); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Cluster) reachablePeers(id string) []string {
	var peers []string
	for other, reachable := range c.edges[id] {
		if reachable {
			peers = append(peers, other)
		}
	}
	sort.Strings(peers)
	return peers
}

// RunRounds runs n gossip rounds in sequence, stopping early on error.
func (c *Cluster) RunRounds(n int) error {
	for i := 0; i < n; i++ {
		if err := c.GossipRound(); err != nil {
			return err
		}
	}
	return nil
}

// Converged reports whether every node in the cluster agrees on the
// value of key.
func (c *Cluster) Converged(key string) bool {
	if len(c.order) == 0 {
		return true
	}
	first := c.nodes[c.order[0]].Get(key)
	for _, id := range c.order[1:] {
		if !c.nodes[id].Get(key).Equal(first) {
			return false
		}
	}
	return true
}

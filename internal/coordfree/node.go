package coordfree

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"rhizo/internal/algebraic"
	"rhizo/internal/rzerr"
	"rhizo/internal/vclock"
)

// Node is one coordination-free replica: local algebraic state, a vector
// clock, a dedup set of applied update ids, and an outbox of updates
// awaiting gossip to peers.
type Node struct {
	id     string
	merger algebraic.Merger

	mu    sync.Mutex
	clock vclock.Clock
	state map[string]algebraic.Value

	seen   map[string]struct{}
	outbox []VersionedUpdate
	all    []VersionedUpdate // every update ever seen, for requeueAll

	meter        metric.Meter
	mergeCounter metric.Int64Counter
	tracer       trace.Tracer
}

// NodeOption configures a new Node.
type NodeOption func(*Node)

// WithMeter emits a counter ("rhizo.coordfree.merges") every time a remote
// update is applied via Receive.
func WithMeter(meter metric.Meter) NodeOption {
	return func(n *Node) {
		n.meter = meter
		n.mergeCounter, _ = meter.Int64Counter("rhizo.coordfree.merges")
	}
}

// WithTracer instruments Receive's merge path with a span per update.
func WithTracer(tracer trace.Tracer) NodeOption {
	return func(n *Node) { n.tracer = tracer }
}

// NewNode returns a Node with an empty clock and empty state.
func NewNode(id string, opts ...NodeOption) *Node {
	n := &Node{
		id:    id,
		clock: vclock.New(),
		state: map[string]algebraic.Value{},
		seen:  map[string]struct{}{},
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Node) ID() string { return n.id }

// Get returns the current algebraic value for key, or Null if absent.
func (n *Node) Get(key string) algebraic.Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.state[key]
	if !ok {
		return algebraic.Null()
	}
	return v
}

// Clock returns a snapshot of the node's current vector clock.
func (n *Node) Clock() vclock.Clock {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clock.Clone()
}

// LocalCommit applies ops to local state, incrementing this node's clock
// entry exactly once, and returns the resulting VersionedUpdate. The
// transaction is rejected — clock unchanged — if it is empty or contains
// any operation whose op_type is not conflict-free.
func (n *Node) LocalCommit(ops []Operation) (VersionedUpdate, error) {
	if len(ops) == 0 {
		return VersionedUpdate{}, rzerr.NewInvalidArgument("coordination-free transaction is empty")
	}
	for _, op := range ops {
		if !op.Op.IsConflictFree() {
			return VersionedUpdate{}, rzerr.NewConflict(rzerr.NonAlgebraic,
				"coordination-free transaction contains a non-conflict-free operation: "+op.Op.String())
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, op := range ops {
		current := n.state[op.Key]
		result := n.merger.Merge(op.Op, current, op.Value)
		if !result.IsMerged() {
			return VersionedUpdate{}, rzerr.NewConflict(rzerr.TypeMismatch,
				"local commit could not apply operation for key "+op.Key)
		}
		n.state[op.Key] = result.Unwrap()
	}

	n.clock = n.clock.Increment(n.id)
	update := VersionedUpdate{Operations: ops, Clock: n.clock.Clone(), Origin: n.id}

	id := update.ID()
	n.seen[id] = struct{}{}
	n.outbox = append(n.outbox, update)
	n.all = append(n.all, update)

	return update, nil
}

// Receive applies a remote update: the remote clock is merged into this
// node's own (element-wise max), and the operations are applied to local
// state. Already-seen updates are silently ignored. A newly applied update
// is re-added to the outbox so it can be relayed transitively.
func (n *Node) Receive(update VersionedUpdate) error {
	if n.tracer != nil {
		_, span := n.tracer.Start(context.Background(), "coordfree.Receive")
		span.SetAttributes(attribute.String("rhizo.origin", update.Origin), attribute.String("rhizo.node", n.id))
		defer span.End()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	id := update.ID()
	if _, dup := n.seen[id]; dup {
		return nil
	}

	for _, op := range update.Operations {
		current := n.state[op.Key]
		result := n.merger.Merge(op.Op, current, op.Value)
		if result.IsTypeMismatch() {
			return &MergeError{Kind: MergeFailedTypeMismatch, Key: op.Key, Detail: "type mismatch applying remote update"}
		}
		if result.IsConflict() {
			return &MergeError{Kind: MergeFailedConflict, Key: op.Key, Detail: result.Reason}
		}
		n.state[op.Key] = result.Unwrap()
	}

	n.clock = n.clock.Merge(update.Clock)
	n.seen[id] = struct{}{}
	n.outbox = append(n.outbox, update)
	n.all = append(n.all, update)
	if n.mergeCounter != nil {
		n.mergeCounter.Add(context.Background(), 1)
	}
	return nil
}

// Outbox returns and clears the updates awaiting propagation.
func (n *Node) Outbox() []VersionedUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.outbox
	n.outbox = nil
	return out
}

// RequeueAllUpdates re-queues every update this node has ever originated
// or received, so a bridge node reconnecting across a healed partition can
// relay updates it learned about while the network was split.
func (n *Node) RequeueAllUpdates() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outbox = append(n.outbox, n.all...)
}

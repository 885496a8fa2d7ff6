package rack

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
)

// Option configures a Rack.
type Option func(*Rack)

// WithLogger sets the logger for skipped entries.
func WithLogger(l *slog.Logger) Option {
	return func(r *Rack) {
		if l != nil {
			r.log = l
		}
	}
}

// Rack instantiates effect chains. It never wires the nodes it creates;
// callers link them with Chain.
type Rack struct {
	ctx      *graph.Context
	registry *Registry
	log      *slog.Logger

	mu    sync.Mutex
	nodes []graph.Node
}

// New creates a rack on ctx. A nil registry uses DefaultRegistry.
func New(ctx *graph.Context, registry *Registry, opts ...Option) *Rack {
	if registry == nil {
		registry = DefaultRegistry()
	}
	r := &Rack{ctx: ctx, registry: registry, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RebuildChain discards the previous node list and instantiates every
// non-bypassed entry with a known type, in order. Unknown types and entries
// whose factory fails are skipped. The previous nodes are not disconnected;
// call Disconnect first.
func (r *Rack) RebuildChain(effects []Effect) []graph.Node {
	nodes := make([]graph.Node, 0, len(effects))
	for _, e := range effects {
		if e.Bypassed {
			continue
		}
		factory := r.registry.Lookup(e.Type)
		if factory == nil {
			r.log.Debug("skipping unknown effect", "type", e.Type, "id", e.ID)
			continue
		}
		n, err := factory(r.ctx, e.Options)
		if err != nil || n == nil {
			r.log.Warn("skipping effect", "type", e.Type, "id", e.ID, "err", err)
			continue
		}
		nodes = append(nodes, n)
	}

	r.mu.Lock()
	r.nodes = nodes
	r.mu.Unlock()
	return append([]graph.Node(nil), nodes...)
}

// Nodes returns the current node list.
func (r *Rack) Nodes() []graph.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]graph.Node(nil), r.nodes...)
}

// Disconnect disposes the current nodes, removing their edges in both
// directions, and clears the list.
func (r *Rack) Disconnect() {
	r.mu.Lock()
	nodes := r.nodes
	r.nodes = nil
	r.mu.Unlock()
	for _, n := range nodes {
		n.Dispose()
	}
}

// Chain wires in -> nodes... -> out. With an empty list in connects straight
// to out.
func Chain(nodes []graph.Node, in, out graph.Node) error {
	path := make([]graph.Node, 0, len(nodes)+2)
	path = append(path, in)
	path = append(path, nodes...)
	path = append(path, out)
	if err := graph.Chain(path...); err != nil {
		return fmt.Errorf("rack: %w", err)
	}
	return nil
}

// Rebuild is the caller contract in one step: it disposes the stale nodes,
// drops in's outgoing edges, rebuilds and wires in -> chain -> out.
func (r *Rack) Rebuild(effects []Effect, in, out graph.Node) ([]graph.Node, error) {
	r.Disconnect()
	in.DisconnectAll()
	nodes := r.RebuildChain(effects)
	return nodes, Chain(nodes, in, out)
}

package graph

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-vecmath"
)

// Node is anything that can be wired into a graph. Every node type in this
// package embeds the shared connection and rendering logic.
type Node interface {
	Kind() string
	Connect(dst Node) error
	Disconnect(dst Node)
	DisconnectAll()
	Dispose()
	Disposed() bool

	base() *node
}

// Chain connects nodes in order. It stops at the first failed connection.
func Chain(nodes ...Node) error {
	for i := 1; i < len(nodes); i++ {
		if err := nodes[i-1].Connect(nodes[i]); err != nil {
			return fmt.Errorf("graph: chain %s -> %s: %w", nodes[i-1].Kind(), nodes[i].Kind(), err)
		}
	}
	return nil
}

type block struct {
	l, r []float64
}

func newBlock(n int) block {
	return block{l: make([]float64, n), r: make([]float64, n)}
}

func (b block) slice(n int) block {
	return block{l: b.l[:n], r: b.r[:n]}
}

// processor transforms the summed input block into the output block.
type processor interface {
	process(in, out block, t0 float64)
}

// puller renders its own sources instead of summing the connected inputs.
type puller interface {
	pull(q int64, frames int, t0 float64, out block)
}

type sourceOnly interface {
	sourceOnly()
}

type node struct {
	ctx  *Context
	kind string
	proc processor

	inputs   []*node
	outputs  []*node
	fixedOut []*node // edges owned by composite nodes
	children []*node // disposed with this node
	disposed bool

	rendered int64
	in, out  block
}

func (n *node) base() *node { return n }

func (n *node) init(ctx *Context, kind string, proc processor) {
	n.ctx = ctx
	n.kind = kind
	n.proc = proc
	n.rendered = -1
	n.in = newBlock(ctx.blockSize)
	n.out = newBlock(ctx.blockSize)
}

// Kind returns the node type name.
func (n *node) Kind() string { return n.kind }

// Context returns the owning context.
func (n *node) Context() *Context { return n.ctx }

// Connect routes this node's output into dst's input. Connecting twice is a
// no-op.
func (n *node) Connect(dst Node) error {
	d := dst.base()
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	if n.disposed || d.disposed {
		return ErrDisposed
	}
	if d.ctx != n.ctx {
		return ErrForeignNode
	}
	if _, ok := d.proc.(sourceOnly); ok {
		return ErrNoInput
	}
	if d == n || reaches(d, n) {
		return ErrCycle
	}
	if slices.Contains(n.outputs, d) {
		return nil
	}
	n.outputs = append(n.outputs, d)
	d.inputs = append(d.inputs, n)
	return nil
}

// Disconnect removes the edge to dst if present.
func (n *node) Disconnect(dst Node) {
	d := dst.base()
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	unlink(n, d)
}

// DisconnectAll removes every outgoing edge.
func (n *node) DisconnectAll() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.disconnectAll()
}

func (n *node) disconnectAll() {
	for len(n.outputs) > 0 {
		unlink(n, n.outputs[0])
	}
}

// Dispose detaches the node from the graph in both directions. Disposed
// nodes render silence and refuse new connections.
func (n *node) Dispose() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.dispose()
}

func (n *node) dispose() {
	if n.disposed {
		return
	}
	n.disconnectAll()
	for len(n.inputs) > 0 {
		unlink(n.inputs[0], n)
	}
	for _, c := range n.children {
		c.dispose()
	}
	n.disposed = true
}

// Disposed reports whether Dispose was called.
func (n *node) Disposed() bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.disposed
}

// NumInputs returns the number of connected upstream nodes.
func (n *node) NumInputs() int {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return len(n.inputs)
}

// NumOutputs returns the number of connected downstream nodes.
func (n *node) NumOutputs() int {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return len(n.outputs)
}

// IsConnectedTo reports whether an edge to dst exists.
func (n *node) IsConnectedTo(dst Node) bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return slices.Contains(n.outputs, dst.base())
}

func unlink(src, dst *node) {
	if i := slices.Index(src.outputs, dst); i >= 0 {
		src.outputs = slices.Delete(src.outputs, i, i+1)
	}
	if i := slices.Index(dst.inputs, src); i >= 0 {
		dst.inputs = slices.Delete(dst.inputs, i, i+1)
	}
}

// reaches reports whether to is downstream of from, following user edges and
// the fixed edges of composite nodes.
func reaches(from, to *node) bool {
	seen := map[*node]bool{}
	stack := []*node{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, cur.outputs...)
		stack = append(stack, cur.fixedOut...)
	}
	return false
}

// render produces the node output for quantum q. Results are memoized so a
// node feeding several consumers is processed once per quantum.
func (n *node) render(q int64, frames int, t0 float64) block {
	out := n.out.slice(frames)
	if n.rendered == q {
		return out
	}
	n.rendered = q
	if n.disposed {
		clearBlock(out)
		return out
	}
	if p, ok := n.proc.(puller); ok {
		p.pull(q, frames, t0, out)
		return out
	}
	in := n.in.slice(frames)
	n.sumInputs(q, frames, t0, in)
	n.proc.process(in, out, t0)
	return out
}

func (n *node) sumInputs(q int64, frames int, t0 float64, in block) {
	clearBlock(in)
	for _, src := range n.inputs {
		b := src.render(q, frames, t0)
		vecmath.AddBlockInPlace(in.l, b.l)
		vecmath.AddBlockInPlace(in.r, b.r)
	}
}

func clearBlock(b block) {
	for i := range b.l {
		b.l[i] = 0
	}
	for i := range b.r {
		b.r[i] = 0
	}
}

type sumProcessor struct{}

func (sumProcessor) process(in, out block, _ float64) {
	copy(out.l, in.l)
	copy(out.r, in.r)
}

// Destination is the context output.
type Destination struct {
	node
}

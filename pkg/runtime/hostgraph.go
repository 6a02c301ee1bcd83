package runtime

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/katalvlaran/lvlath/core"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
)

type changeKind int

const (
	addedNode changeKind = iota
	removedNode
	addedEdge
	removedEdge
)

// change is one logged mutation. Edges carry no identity of their own:
// parallel edges between the same nodes are interchangeable, so undo works
// on endpoints rather than on lvlath edge IDs.
type change struct {
	kind     changeKind
	node     string
	from, to string
	// counter is the node counter before the change.
	counter int
}

// HostGraph is the mutable graph a program runs against: directed, with
// self-loops and parallel edges allowed.
type HostGraph struct {
	g        *core.Graph
	nextNode int

	recording bool
	log       []change
}

func newCoreGraph() *core.Graph {
	return core.NewGraph(core.WithDirected(true), core.WithLoops(), core.WithMultiEdges())
}

func NewHostGraph() *HostGraph {
	return &HostGraph{g: newCoreGraph()}
}

// AddNode creates a node with a fresh identifier and returns it.
func (h *HostGraph) AddNode() (string, error) {
	id := fmt.Sprintf("n%d", h.nextNode)
	for h.g.HasVertex(id) {
		h.nextNode++
		id = fmt.Sprintf("n%d", h.nextNode)
	}
	if err := h.AddNodeID(id); err != nil {
		return "", err
	}
	return id, nil
}

// AddNodeID creates a node with the given identifier. Adding an existing
// node is a no-op.
func (h *HostGraph) AddNodeID(id string) error {
	if h.g.HasVertex(id) {
		return nil
	}
	prev := h.nextNode
	if err := h.g.AddVertex(id); err != nil {
		return err
	}
	var n int
	if _, err := fmt.Sscanf(id, "n%d", &n); err == nil && n >= h.nextNode {
		h.nextNode = n + 1
	}
	h.note(change{kind: addedNode, node: id, counter: prev})
	return nil
}

// RemoveNode deletes a node together with its incident edges.
func (h *HostGraph) RemoveNode(id string) error {
	if !h.g.HasVertex(id) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for _, e := range h.g.Edges() {
		if e.From == id || e.To == id {
			if err := h.RemoveEdge(e.From, e.To); err != nil {
				return err
			}
		}
	}
	if err := h.g.RemoveVertex(id); err != nil {
		return err
	}
	h.note(change{kind: removedNode, node: id, counter: h.nextNode})
	return nil
}

func (h *HostGraph) AddEdge(from, to string) error {
	if !h.g.HasVertex(from) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if !h.g.HasVertex(to) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	if _, err := h.g.AddEdge(from, to, 0); err != nil {
		return err
	}
	h.note(change{kind: addedEdge, from: from, to: to, counter: h.nextNode})
	return nil
}

// RemoveEdge deletes one edge from -> to.
func (h *HostGraph) RemoveEdge(from, to string) error {
	for _, e := range h.g.Edges() {
		if e.From == from && e.To == to {
			if err := h.g.RemoveEdge(e.ID); err != nil {
				return err
			}
			h.note(change{kind: removedEdge, from: from, to: to, counter: h.nextNode})
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrEdgeNotFound, from, to)
}

func (h *HostGraph) HasNode(id string) bool {
	return h.g.HasVertex(id)
}

func (h *HostGraph) HasEdge(from, to string) bool {
	return h.g.HasEdge(from, to)
}

// Nodes returns node identifiers in sorted order.
func (h *HostGraph) Nodes() []string {
	return h.g.Vertices()
}

// Edges returns every edge as a from/to pair, sorted.
func (h *HostGraph) Edges() [][2]string {
	edges := h.g.Edges()
	out := make([][2]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, [2]string{e.From, e.To})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Clone returns an independent copy. The change log is not copied.
func (h *HostGraph) Clone() (*HostGraph, error) {
	g, err := h.copyCore()
	if err != nil {
		return nil, err
	}
	return &HostGraph{g: g, nextNode: h.nextNode}, nil
}

// copyCore rebuilds the lvlath graph vertex by vertex and edge by edge.
// core.Graph.Clone does not carry the edge ID counter, so the next AddEdge
// on a clone would overwrite an existing edge.
func (h *HostGraph) copyCore() (*core.Graph, error) {
	g := newCoreGraph()
	for _, n := range h.g.Vertices() {
		if err := g.AddVertex(n); err != nil {
			return nil, fmt.Errorf("copy node %s: %w", n, err)
		}
	}
	for _, e := range h.g.Edges() {
		if _, err := g.AddEdge(e.From, e.To, 0); err != nil {
			return nil, fmt.Errorf("copy edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	return g, nil
}

// String renders the graph canonically: equal graphs give equal strings
// whatever order they were built in.
func (h *HostGraph) String() string {
	var b strings.Builder
	b.WriteString("[ ")
	for _, n := range h.Nodes() {
		b.WriteString("(" + n + ") ")
	}
	b.WriteString("| ")
	for _, e := range h.Edges() {
		b.WriteString("(" + e[0] + ", " + e[1] + ") ")
	}
	b.WriteString("]")
	return b.String()
}

func (h *HostGraph) note(c change) {
	if h.recording {
		h.log = append(h.log, c)
	}
}

func (h *HostGraph) top() int {
	return len(h.log)
}

// undo reverts logged changes until the log is mark entries long.
func (h *HostGraph) undo(mark int) error {
	if mark > len(h.log) {
		return fmt.Errorf("change log is %d entries long, cannot undo to %d", len(h.log), mark)
	}
	recording := h.recording
	h.recording = false
	defer func() { h.recording = recording }()

	for len(h.log) > mark {
		c := h.log[len(h.log)-1]
		h.log = h.log[:len(h.log)-1]
		var err error
		switch c.kind {
		case addedNode:
			err = h.g.RemoveVertex(c.node)
		case removedNode:
			err = h.g.AddVertex(c.node)
		case addedEdge:
			err = h.RemoveEdge(c.from, c.to)
		case removedEdge:
			_, err = h.g.AddEdge(c.from, c.to, 0)
		}
		if err != nil {
			return fmt.Errorf("undo: %w", err)
		}
		h.nextNode = c.counter
	}
	return nil
}

// discard forgets logged changes above mark without reverting them.
func (h *HostGraph) discard(mark int) error {
	if mark > len(h.log) {
		return fmt.Errorf("change log is %d entries long, cannot discard to %d", len(h.log), mark)
	}
	h.log = h.log[:mark]
	return nil
}

func (h *HostGraph) restore(from *HostGraph) error {
	g, err := from.copyCore()
	if err != nil {
		return err
	}
	h.g = g
	h.nextNode = from.nextNode
	return nil
}

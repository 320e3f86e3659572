// Package graph holds the module import graph used for cycle reporting and
// visualization.
package graph

import (
	"reflect"
	"sync"
)

// Attributes describe a module node.
type Attributes struct {
	Label       string
	Route       string
	Controllers int
	Providers   int
}

// Node is a module in the import graph.
type Node struct {
	Type  reflect.Type
	Attrs Attributes

	// Imports are the modules this node imports, in declaration order.
	Imports []reflect.Type

	// Importers are the modules importing this node.
	Importers []reflect.Type

	// Depth is the shortest import distance from a root, or -1 when the node
	// is only reachable through a cycle.
	Depth int
}

// Graph is a directed graph of module imports. Nodes keep insertion order so
// every rendering is deterministic.
type Graph struct {
	mu    sync.RWMutex
	nodes map[reflect.Type]*Node
	order []reflect.Type
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[reflect.Type]*Node),
	}
}

// AddNode adds a node or updates its attributes.
func (g *Graph) AddNode(t reflect.Type, attrs Attributes) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensure(t).Attrs = attrs
}

// AddEdge records that from imports to.
func (g *Graph) AddEdge(from, to reflect.Type) {
	g.mu.Lock()
	defer g.mu.Unlock()

	f := g.ensure(from)
	for _, existing := range f.Imports {
		if existing == to {
			return
		}
	}
	f.Imports = append(f.Imports, to)

	n := g.ensure(to)
	n.Importers = append(n.Importers, from)
}

func (g *Graph) ensure(t reflect.Type) *Node {
	n, ok := g.nodes[t]
	if !ok {
		n = &Node{Type: t, Depth: -1}
		g.nodes[t] = n
		g.order = append(g.order, t)
	}
	return n
}

// Node returns the node of t.
func (g *Graph) Node(t reflect.Type) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[t]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Node, len(g.order))
	for i, t := range g.order {
		out[i] = g.nodes[t]
	}
	return out
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// Roots returns the nodes nothing imports.
func (g *Graph) Roots() []*Node {
	var roots []*Node
	for _, n := range g.Nodes() {
		if len(n.Importers) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// DetectCycles returns a CycleError for the first import cycle found, in
// insertion order.
func (g *Graph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		white = iota
		grey
		black
	)
	color := make(map[reflect.Type]int, len(g.nodes))
	var stack []reflect.Type

	var visit func(t reflect.Type) error
	visit = func(t reflect.Type) error {
		color[t] = grey
		stack = append(stack, t)

		for _, next := range g.nodes[t].Imports {
			switch color[next] {
			case grey:
				for i, s := range stack {
					if s == next {
						path := make([]reflect.Type, len(stack)-i)
						copy(path, stack[i:])
						return &CycleError{Path: path}
					}
				}
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[t] = black
		return nil
	}

	for _, t := range g.order {
		if color[t] == white {
			if err := visit(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsAcyclic reports whether the graph has no import cycle.
func (g *Graph) IsAcyclic() bool {
	return g.DetectCycles() == nil
}

// CalculateDepths sets Depth to the shortest import distance from a root.
func (g *Graph) CalculateDepths() {
	g.mu.Lock()
	defer g.mu.Unlock()

	queue := make([]reflect.Type, 0, len(g.nodes))
	for _, t := range g.order {
		n := g.nodes[t]
		n.Depth = -1
		if len(n.Importers) == 0 {
			n.Depth = 0
			queue = append(queue, t)
		}
	}

	for len(queue) > 0 {
		current := g.nodes[queue[0]]
		queue = queue[1:]

		for _, imp := range current.Imports {
			next := g.nodes[imp]
			if next.Depth == -1 {
				next.Depth = current.Depth + 1
				queue = append(queue, imp)
			}
		}
	}
}

// Label returns the display name of a node.
func (n *Node) Label() string {
	if n.Attrs.Label != "" {
		return n.Attrs.Label
	}
	if n.Type == nil {
		return "<nil>"
	}
	return n.Type.String()
}

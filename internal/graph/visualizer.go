package graph

import (
	"fmt"
	"io"
	"reflect"
	"strings"
)

// Visualizer renders a Graph.
type Visualizer struct {
	graph *Graph
}

// NewVisualizer creates a new graph visualizer
func NewVisualizer(graph *Graph) *Visualizer {
	return &Visualizer{graph: graph}
}

// WriteDOT writes the graph in Graphviz DOT format
func (v *Visualizer) WriteDOT(w io.Writer) error {
	nodes := v.graph.Nodes()

	fmt.Fprintln(w, "digraph modules {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box];")

	ids := make(map[*Node]string, len(nodes))
	for i, node := range nodes {
		id := fmt.Sprintf("n%d", i)
		ids[node] = id

		fmt.Fprintf(w, "  %s [label=\"%s\", fillcolor=\"%s\", style=filled];\n",
			id, v.formatNodeLabel(node), v.getNodeColor(node))
	}

	for _, node := range nodes {
		for _, imp := range node.Imports {
			to, ok := v.graph.Node(imp)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s -> %s;\n", ids[node], ids[to])
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// WriteText writes a text representation of the graph
func (v *Visualizer) WriteText(w io.Writer) error {
	fmt.Fprintln(w, "Module Graph:")
	fmt.Fprintln(w, "=============")
	fmt.Fprintln(w)

	v.graph.CalculateDepths()

	depthGroups := make(map[int][]*Node)
	maxDepth := 0
	for _, node := range v.graph.Nodes() {
		depthGroups[node.Depth] = append(depthGroups[node.Depth], node)
		if node.Depth > maxDepth {
			maxDepth = node.Depth
		}
	}

	for depth := 0; depth <= maxDepth; depth++ {
		nodes, ok := depthGroups[depth]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "Level %d:\n", depth)
		fmt.Fprintln(w, "--------")
		for _, node := range nodes {
			v.writeNodeDetails(w, node, "  ")
		}
		fmt.Fprintln(w)
	}

	if nodes, ok := depthGroups[-1]; ok {
		fmt.Fprintln(w, "Nodes in Cycles:")
		fmt.Fprintln(w, "----------------")
		for _, node := range nodes {
			v.writeNodeDetails(w, node, "  ")
		}
		fmt.Fprintln(w)
	}

	v.writeStatistics(w)
	return nil
}

func (v *Visualizer) formatNodeLabel(node *Node) string {
	label := node.Label()
	if node.Attrs.Route != "" {
		label += "\\n" + node.Attrs.Route
	}
	return fmt.Sprintf("%s\\nControllers:%d Providers:%d",
		label, node.Attrs.Controllers, node.Attrs.Providers)
}

func (v *Visualizer) getNodeColor(node *Node) string {
	switch {
	case len(node.Importers) == 0:
		return "lightblue"
	case node.Attrs.Controllers > 0:
		return "lightgreen"
	default:
		return "lightyellow"
	}
}

func (v *Visualizer) writeNodeDetails(w io.Writer, node *Node, indent string) {
	fmt.Fprintf(w, "%s%s\n", indent, node.Label())

	if node.Attrs.Route != "" {
		fmt.Fprintf(w, "%s  Route: %s\n", indent, node.Attrs.Route)
	}

	if len(node.Imports) > 0 {
		fmt.Fprintf(w, "%s  Imports: [%s]\n", indent, v.labels(node.Imports))
	}
}

func (v *Visualizer) labels(types []reflect.Type) string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if n, ok := v.graph.Node(t); ok {
			out = append(out, n.Label())
		}
	}
	return strings.Join(out, ", ")
}

func (v *Visualizer) writeStatistics(w io.Writer) {
	nodes := v.graph.Nodes()
	edges := 0
	controllers := 0
	for _, n := range nodes {
		edges += len(n.Imports)
		controllers += n.Attrs.Controllers
	}

	fmt.Fprintln(w, "Statistics:")
	fmt.Fprintln(w, "-----------")
	fmt.Fprintf(w, "  Modules: %d\n", len(nodes))
	fmt.Fprintf(w, "  Imports: %d\n", edges)
	fmt.Fprintf(w, "  Controllers: %d\n", controllers)

	if err := v.graph.DetectCycles(); err != nil {
		fmt.Fprintln(w, "  Cycles: DETECTED")
	} else {
		fmt.Fprintln(w, "  Cycles: None (graph is acyclic)")
	}
}

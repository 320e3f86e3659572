package modkit

import (
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/junioryono/modkit/internal/graph"
	"github.com/junioryono/modkit/internal/reflection"
)

// ModuleNode is a module in the application graph.
type ModuleNode struct {
	Class       Class
	Meta        ModuleDescriptor
	Imports     []*ModuleNode
	Controllers []*ControllerNode
}

// ControllerNode is a controller in the application graph.
type ControllerNode struct {
	Class   Class
	Meta    ControllerDescriptor
	Methods []*MethodNode
}

// MethodNode is a declared controller method.
type MethodNode struct {
	Name string
	Meta MethodDescriptor
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func methodValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// BuildGraph walks the declarations reachable from root and returns the
// module tree. A module imported from several places is represented by a
// single node, so import cycles produce cyclic node references.
func BuildGraph(meta *Metadata, root Class) (*ModuleNode, error) {
	b := &graphBuilder{
		meta:    meta,
		modules: make(map[reflect.Type]*ModuleNode),
	}
	return b.module(root)
}

type graphBuilder struct {
	meta    *Metadata
	modules map[reflect.Type]*ModuleNode
}

func (b *graphBuilder) module(cls Class) (*ModuleNode, error) {
	if cls.IsZero() {
		return nil, NotAModuleError{Cause: ErrNilClass}
	}

	if n, ok := b.modules[cls.Type()]; ok {
		return n, nil
	}

	desc, ok := b.meta.ModuleDescriptor(cls.Type())
	if !ok {
		return nil, NotAModuleError{Type: cls.Type()}
	}

	node := &ModuleNode{Class: cls, Meta: desc}
	b.modules[cls.Type()] = node

	for _, ctrl := range desc.Controllers {
		cn, err := b.controller(ctrl)
		if err != nil {
			return nil, err
		}
		node.Controllers = append(node.Controllers, cn)
	}

	for _, imp := range desc.Imports {
		in, err := b.module(imp)
		if err != nil {
			return nil, err
		}
		node.Imports = append(node.Imports, in)
	}

	return node, nil
}

func (b *graphBuilder) controller(cls Class) (*ControllerNode, error) {
	if cls.IsZero() {
		return nil, NotAControllerError{Cause: ErrNilClass}
	}

	desc, ok := b.meta.ControllerDescriptor(cls.Type())
	if !ok {
		return nil, NotAControllerError{Type: cls.Type()}
	}

	node := &ControllerNode{Class: cls, Meta: desc}
	for _, md := range b.meta.MethodDescriptors(cls.Type()) {
		if !reflection.HasMethod(cls.Type(), md.Name) {
			return nil, InvalidMethodError{
				Type:   cls.Type(),
				Method: md.Name,
				Cause:  fmt.Errorf("method not found on %s", formatType(cls.Type())),
			}
		}
		if !reflection.HasOwnMethod(cls.Type(), md.Name) {
			return nil, InvalidMethodError{
				Type:   cls.Type(),
				Method: md.Name,
				Cause:  fmt.Errorf("method is promoted from an embedded field of %s", formatType(cls.Type())),
			}
		}

		if err := methodValidator().Struct(md); err != nil {
			return nil, InvalidMethodError{Type: cls.Type(), Method: md.Name, Cause: err}
		}

		if md.Main && md.Command != "" {
			return nil, InvalidMethodError{
				Type:   cls.Type(),
				Method: md.Name,
				Cause:  fmt.Errorf("a method cannot be both the main command and command %q", md.Command),
			}
		}

		node.Methods = append(node.Methods, &MethodNode{Name: md.Name, Meta: md})
	}

	return node, nil
}

// Walk visits n and every module reachable through imports once, parents
// before imports. Returning false from fn stops the walk.
func (n *ModuleNode) Walk(fn func(*ModuleNode) bool) {
	seen := make(map[reflect.Type]bool)
	var walk func(*ModuleNode) bool
	walk = func(m *ModuleNode) bool {
		if seen[m.Class.Type()] {
			return true
		}
		seen[m.Class.Type()] = true

		if !fn(m) {
			return false
		}
		for _, imp := range m.Imports {
			if !walk(imp) {
				return false
			}
		}
		return true
	}
	walk(n)
}

// Graph converts the module tree into an import graph.
func (n *ModuleNode) Graph() *graph.Graph {
	g := graph.New()
	n.Walk(func(m *ModuleNode) bool {
		g.AddNode(m.Class.Type(), graph.Attributes{
			Label:       m.Class.String(),
			Route:       m.Meta.Route,
			Controllers: len(m.Controllers),
			Providers:   len(m.Meta.Providers),
		})
		for _, imp := range m.Imports {
			g.AddEdge(m.Class.Type(), imp.Class.Type())
		}
		return true
	})
	return g
}

// WriteDOT writes the module import graph in Graphviz DOT format.
func (n *ModuleNode) WriteDOT(w io.Writer) error {
	return graph.NewVisualizer(n.Graph()).WriteDOT(w)
}

// WriteText writes a text rendering of the module import graph.
func (n *ModuleNode) WriteText(w io.Writer) error {
	return graph.NewVisualizer(n.Graph()).WriteText(w)
}

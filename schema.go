package geoz

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// NodeType discriminates schema nodes.
type NodeType string

// Node types.
const (
	NodeTypePipeline  NodeType = "pipeline"
	NodeTypeOperator  NodeType = "operator"
	NodeTypeComposite NodeType = "composite"
)

// Node represents a node in the pipeline schema tree. The root describes
// the pipeline itself; its children are the steps in declared order.
// Composite steps carry the steps of the pipeline they wrap.
type Node struct {
	Params      map[string]string `json:"params,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Name        string            `json:"name"`
	Type        NodeType          `json:"type"`
	Children    []Node            `json:"children,omitempty"`
	Step        int               `json:"step"`
	Inverted    bool              `json:"inverted,omitempty"`
	OmitForward bool              `json:"omit_fwd,omitempty"`
	OmitInverse bool              `json:"omit_inv,omitempty"`
	Invertible  bool              `json:"invertible"`
}

// Schema is a serializable description of a built pipeline, for
// debugging and tooling.
type Schema struct {
	Root Node `json:"root"`
}

// Schema describes the pipeline without running it.
func (p *Pipeline) Schema() Schema {
	return Schema{Root: p.node(-1)}
}

func (p *Pipeline) node(step int) Node {
	root := Node{
		Name:       p.name,
		Type:       NodeTypePipeline,
		Step:       step,
		Invertible: true,
		Metadata: map[string]any{
			"definition":  p.definition,
			"fingerprint": fmt.Sprintf("%016x", p.fingerprint),
		},
	}
	for i, st := range p.steps {
		n := Node{
			Name:        st.Operator.Name(),
			Type:        NodeTypeOperator,
			Step:        i,
			Inverted:    st.Inverted,
			OmitForward: st.OmitForward,
			OmitInverse: st.OmitInverse,
			Invertible:  invertible(st.Operator),
		}
		if len(st.Spec.Params) > 0 {
			n.Params = make(map[string]string, len(st.Spec.Params))
			for _, prm := range st.Spec.Params {
				n.Params[prm.Key] = prm.Value
			}
		}
		if c, ok := st.Operator.(*composite); ok {
			inner := c.pipeline.node(i)
			n.Type = NodeTypeComposite
			n.Children = inner.Children
			n.Metadata = inner.Metadata
		}
		if !n.Invertible {
			root.Invertible = false
		}
		root.Children = append(root.Children, n)
	}
	return root
}

func invertible(op Operator) bool {
	if d, ok := op.(Directional); ok {
		return d.Invertible()
	}
	return true
}

// YAML renders the schema as YAML.
func (s Schema) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// Walk traverses the schema tree depth-first, pre-order.
func (s Schema) Walk(fn func(Node)) {
	walkNode(s.Root, fn)
}

func walkNode(node Node, fn func(Node)) {
	fn(node)
	for _, child := range node.Children {
		walkNode(child, fn)
	}
}

// Find returns the first node matching the predicate, or nil if not found.
func (s Schema) Find(predicate func(Node) bool) *Node {
	var result *Node
	s.Walk(func(node Node) {
		if result == nil && predicate(node) {
			result = &node
		}
	})
	return result
}

// FindByName returns the first node with the given name, or nil if not found.
func (s Schema) FindByName(name string) *Node {
	return s.Find(func(n Node) bool {
		return n.Name == name
	})
}

// FindByType returns all nodes of the given type.
func (s Schema) FindByType(t NodeType) []Node {
	var results []Node
	s.Walk(func(node Node) {
		if node.Type == t {
			results = append(results, node)
		}
	})
	return results
}

// Count returns the total number of nodes in the schema.
func (s Schema) Count() int {
	count := 0
	s.Walk(func(_ Node) {
		count++
	})
	return count
}

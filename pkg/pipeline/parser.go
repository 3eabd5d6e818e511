package pipeline

import (
	"cmp"
	"fmt"
	"maps"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// ParseDiagram reads a Graphviz digraph, such as the output of RenderDOT,
// back into a Diagram. Attributes are accepted without validation; node
// labels default to the node id.
func ParseDiagram(src string) (*Diagram, error) {
	ast, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("read dot: %w", err)
	}
	r := &diagramReader{d: &Diagram{Nodes: map[string]*DiagramNode{}}}
	if err := gographviz.Analyse(ast, r); err != nil {
		return nil, fmt.Errorf("read dot: %w", err)
	}
	for id, n := range r.d.Nodes {
		n.Label = cmp.Or(n.Attrs["label"], id)
	}
	for _, l := range r.d.Links {
		l.Label = l.Attrs["label"]
	}
	return r.d, nil
}

// diagramReader is a gographviz.Interface that fills a Diagram. Statements
// about the graph as a whole and subgraphs are ignored.
type diagramReader struct {
	d *Diagram
}

func (r *diagramReader) SetStrict(bool) error { return nil }
func (r *diagramReader) SetDir(bool) error    { return nil }
func (r *diagramReader) String() string       { return r.d.Name }

func (r *diagramReader) SetName(name string) error {
	r.d.Name = unquote(name)
	return nil
}

// AddNode merges attrs into the node, since DOT may mention a node more
// than once.
func (r *diagramReader) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	n, ok := r.d.Nodes[id]
	if !ok {
		n = &DiagramNode{ID: id, Attrs: map[string]string{}}
		r.d.Nodes[id] = n
	}
	maps.Copy(n.Attrs, unquoteAll(attrs))
	return nil
}

func (r *diagramReader) AddEdge(src, dst string, _ bool, attrs map[string]string) error {
	r.d.Links = append(r.d.Links, &DiagramLink{
		From:  unquote(src),
		To:    unquote(dst),
		Attrs: unquoteAll(attrs),
	})
	return nil
}

func (r *diagramReader) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return r.AddEdge(src, dst, directed, attrs)
}

func (r *diagramReader) AddAttr(string, string, string) error                { return nil }
func (r *diagramReader) AddSubGraph(string, string, map[string]string) error { return nil }

func unquoteAll(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = unquote(v)
	}
	return out
}

// unquote reverses dotQuote.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s[1 : len(s)-1])
}

package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// DiagramNode is one vertex of a rendered design, normally a Stage.
type DiagramNode struct {
	ID    string
	Label string
	Attrs map[string]string // all DOT attributes
}

// DiagramLink is a directed connection from the stage that answers a call
// to the stage that issues it.
type DiagramLink struct {
	From  string
	To    string
	Label string
	Attrs map[string]string
}

// Diagram is a graph view of a State, or of a DOT file read back in.
type Diagram struct {
	Name  string
	Nodes map[string]*DiagramNode
	Links []*DiagramLink
}

// OutgoingLinks returns all links leaving nodeID, in definition order.
func (d *Diagram) OutgoingLinks(nodeID string) []*DiagramLink {
	var out []*DiagramLink
	for _, l := range d.Links {
		if l.From == nodeID {
			out = append(out, l)
		}
	}
	return out
}

// IncomingLinks returns all links arriving at nodeID.
func (d *Diagram) IncomingLinks(nodeID string) []*DiagramLink {
	var out []*DiagramLink
	for _, l := range d.Links {
		if l.To == nodeID {
			out = append(out, l)
		}
	}
	return out
}

// BuildDiagram projects s onto a Diagram: one node per Stage and one link
// per Edge, drawn from the responder's stage to the requester's stage and
// labelled with the message type that flows along it.
func BuildDiagram(s State, name string) *Diagram {
	if name == "" {
		name = "pipeline"
	}
	d := &Diagram{Name: name, Nodes: make(map[string]*DiagramNode, len(s.Stages))}
	for _, st := range s.SortedStages() {
		attrs := map[string]string{"shape": "ellipse"}
		if a, ok := s.Assets[st.AssetID]; ok {
			attrs["tooltip"] = a.Image
		}
		d.Nodes[string(st.ID)] = &DiagramNode{ID: string(st.ID), Label: st.Name, Attrs: attrs}
	}
	for _, e := range s.SortedEdges() {
		typ := ""
		if _, ap, err := s.Resolve(e.Responder); err == nil {
			typ = ap.Type.Name
		}
		d.Links = append(d.Links, &DiagramLink{
			From:  string(e.Responder.StageID),
			To:    string(e.Requester.StageID),
			Label: typ,
			Attrs: map[string]string{"color": TypeColor(typ)},
		})
	}
	return d
}

// RenderDOT renders s as a Graphviz digraph.
func RenderDOT(s State) (string, error) {
	return BuildDiagram(s, "").DOT()
}

// DOT renders the diagram through gographviz. Node and link order follow
// the diagram's own order.
func (d *Diagram) DOT() (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(dotQuote(d.Name)); err != nil {
		return "", fmt.Errorf("dot name: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return "", fmt.Errorf("dot dir: %w", err)
	}

	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		n := d.Nodes[id]
		attrs := quoteAttrs(n.Attrs)
		attrs["label"] = dotQuote(n.Label)
		if err := g.AddNode(g.Name, dotQuote(id), attrs); err != nil {
			return "", fmt.Errorf("dot node %s: %w", id, err)
		}
	}
	for _, l := range d.Links {
		attrs := quoteAttrs(l.Attrs)
		if l.Label != "" {
			attrs["label"] = dotQuote(l.Label)
		}
		if err := g.AddEdge(dotQuote(l.From), dotQuote(l.To), true, attrs); err != nil {
			return "", fmt.Errorf("dot link %s -> %s: %w", l.From, l.To, err)
		}
	}
	return g.String(), nil
}

// TypeColor derives a stable colour from a message type name, so equal
// types share a colour in every rendering.
func TypeColor(typeName string) string {
	sum := md5.Sum([]byte(typeName))
	return "#" + hex.EncodeToString(sum[:3])
}

func quoteAttrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = dotQuote(v)
	}
	return out
}

// dotQuote returns s as a quoted DOT string.
func dotQuote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

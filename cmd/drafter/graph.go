package main

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

func graphCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print a human-readable summary or a Graphviz rendering of the design",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			d := pipeline.BuildDiagram(s, a.cfg.Solution)

			switch strings.ToLower(format) {
			case "dot":
				out, err := d.DOT()
				if err != nil {
					return fmt.Errorf("render: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(d))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

// flowOrder returns node IDs breadth first from the stages nothing feeds
// into, following data flow; nodes only reachable through cycles are
// appended in sorted order at the end.
func flowOrder(d *pipeline.Diagram) []string {
	var roots []string
	for id := range d.Nodes {
		if len(d.IncomingLinks(id)) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)

	visited := map[string]bool{}
	var order []string
	queue := roots
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		if _, ok := d.Nodes[cur]; !ok {
			continue
		}
		visited[cur] = true
		order = append(order, cur)
		for _, l := range d.OutgoingLinks(cur) {
			if !visited[l.To] {
				queue = append(queue, l.To)
			}
		}
	}

	var rest []string
	for id := range d.Nodes {
		if !visited[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// label returns the display name of a node, or the raw id when the link
// points at a stage that is not in the diagram.
func label(d *pipeline.Diagram, id string) string {
	if n, ok := d.Nodes[id]; ok {
		return n.Label
	}
	return id + " (missing)"
}

// renderText produces the human-readable text summary.
func renderText(d *pipeline.Diagram) string {
	var sb strings.Builder

	order := flowOrder(d)
	fmt.Fprintf(&sb, "Solution: %s  (%d stages, %d connections)\n", d.Name, len(d.Nodes), len(d.Links))

	maxLabelLen := 5 // minimum "stage"
	for _, n := range d.Nodes {
		maxLabelLen = max(maxLabelLen, len(n.Label))
	}

	fmt.Fprintf(&sb, "\nStages:\n")
	for _, id := range order {
		n := d.Nodes[id]
		fmt.Fprintf(&sb, "  %-*s  %s  %s\n", maxLabelLen, n.Label, id, n.Attrs["tooltip"])
	}

	fmt.Fprintf(&sb, "\nConnections:\n")
	links := slices.Clone(d.Links)
	slices.SortStableFunc(links, func(x, y *pipeline.DiagramLink) int {
		return strings.Compare(label(d, x.From), label(d, y.From))
	})
	maxFromLen := 4
	for _, l := range links {
		maxFromLen = max(maxFromLen, len(label(d, l.From)))
	}
	for _, l := range links {
		fmt.Fprintf(&sb, "  %-*s  →  %s  [%s]\n", maxFromLen, label(d, l.From), label(d, l.To), l.Label)
	}

	return sb.String()
}

package visgraph

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/detour/pkg/geom"
)

// ToDOT returns a Graphviz DOT representation of the orthogonal graph.
//
// Node positions are pinned to their diagram coordinates (y flipped, since
// Graphviz points up), so the output must be laid out with neato. Shapes are
// drawn as dashed boxes of their buffered size; edges that pass through a
// shape are drawn grey.
func (g *Orthogonal) ToDOT() string {
	return toDOT("orthogonal", g.space, g.Edges())
}

// ToDOT returns a Graphviz DOT representation of the visibility graph.
func (g *Polyline) ToDOT() string {
	return toDOT("polyline", g.space, g.Edges())
}

func toDOT(name string, space *Space, edges []Edge) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "graph %s {\n", name)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=point, width=0.04, color=\"#2a7fb8\"];\n")
	buf.WriteString("  edge [color=\"#2a7fb8\", penwidth=0.6];\n\n")

	for _, id := range space.ShapeIDs() {
		b, _ := space.Buffered(id)
		c := b.Centre()
		fmt.Fprintf(&buf, "  %q [shape=box, style=dashed, color=\"#999999\", label=%q, fixedsize=true, width=%.3f, height=%.3f, pos=\"%g,%g!\"];\n",
			"shape:"+id, id, b.Width()/72, b.Height()/72, c.X, -c.Y)
	}

	ids := make(map[geom.Point]string)
	var pts []geom.Point
	for _, e := range edges {
		for _, p := range []geom.Point{e.A, e.B} {
			if _, ok := ids[p]; !ok {
				ids[p] = ""
				pts = append(pts, p)
			}
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Less(pts[j]) })
	for i, p := range pts {
		ids[p] = fmt.Sprintf("n%d", i)
		fmt.Fprintf(&buf, "  n%d [pos=\"%g,%g!\"];\n", i, p.X, -p.Y)
	}

	buf.WriteString("\n")
	for _, e := range edges {
		attrs := ""
		if len(e.Pen) > 0 {
			attrs = " [color=\"#bbbbbb\", style=dotted]"
		}
		fmt.Fprintf(&buf, "  %s -- %s%s;\n", ids[e.A], ids[e.B], attrs)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT document produced by ToDOT as SVG.
//
// RenderSVG requires the Graphviz library (github.com/goccy/go-graphviz).
// Errors are returned if Graphviz cannot initialize, the DOT is malformed,
// or rendering fails.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

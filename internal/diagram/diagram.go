// Package diagram renders an entity-relationship diagram of a schema as
// Graphviz DOT source. It reads only the declared shape, never live data.
package diagram

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tordrt/footstats/internal/schema"
)

// Write renders s as an undirected DOT graph called name. Entities are
// boxes, attributes ellipses (primary keys underlined, derived attributes
// dashed) and foreign keys diamonds with a thick line on the referencing
// side.
func Write(w io.Writer, name string, s *schema.Schema) error {
	var b strings.Builder

	fmt.Fprintf(&b, "graph %s {\n", quote(name))
	b.WriteString("\trankdir=TB;\n")
	b.WriteString("\tsplines=true;\n")
	b.WriteString("\tnodesep=0.7;\n")
	b.WriteString("\tranksep=1.0;\n")

	for _, table := range s.Tables {
		b.WriteString("\n")
		writeEntity(&b, table)
	}

	for _, table := range s.Tables {
		for _, rel := range table.Relations {
			if s.FindTable(rel.TargetTable) == nil {
				return fmt.Errorf("relation %s.%s references unknown table %s", table.Name, rel.SourceColumn, rel.TargetTable)
			}
			b.WriteString("\n")
			writeRelationship(&b, table, rel)
		}
	}

	b.WriteString("\n")
	writeLegend(&b)
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeEntity(b *strings.Builder, table schema.Table) {
	fmt.Fprintf(b, "\t%s [shape=box];\n", quote(table.Name))

	for _, col := range table.Columns {
		id := attributeID(table.Name, col.Name)
		label := quote(col.Name)
		if slices.Contains(table.PrimaryKey, col.Name) {
			label = "<<U>" + htmlEscape(col.Name) + "</U>>"
		}
		style := ""
		if col.Derived {
			style = ", style=dashed"
		}
		fmt.Fprintf(b, "\t%s [label=%s, shape=ellipse, margin=0.05%s];\n", id, label, style)
		fmt.Fprintf(b, "\t%s -- %s;\n", quote(table.Name), id)
	}
}

func writeRelationship(b *strings.Builder, table schema.Table, rel schema.Relation) {
	label := rel.Name
	if label == "" {
		label = table.Name + "_" + rel.SourceColumn
	}
	id := quote("rel_" + table.Name + "_" + rel.SourceColumn)

	fmt.Fprintf(b, "\t%s [label=%s, shape=diamond];\n", id, quote(label))
	fmt.Fprintf(b, "\t%s -- %s [penwidth=3.0, dir=forward];\n", quote(table.Name), id)
	fmt.Fprintf(b, "\t%s -- %s [penwidth=1.0, dir=none];\n", quote(rel.TargetTable), id)
}

func writeLegend(b *strings.Builder) {
	b.WriteString("\tsubgraph cluster_legend {\n")
	b.WriteString("\t\trank=sink;\n")
	b.WriteString("\t\tcolor=white;\n")
	b.WriteString("\t\t\"Legend\" [shape=none, margin=0, label=<\n")
	b.WriteString("\t\t\t<table border=\"0\" cellborder=\"1\" cellspacing=\"0\" cellpadding=\"5\">\n")
	for _, row := range [][2]string{
		{"Entity", "Rectangle"},
		{"Relationship", "Diamond"},
		{"Attribute", "Oval"},
		{"Derived Attribute", "Dashed Oval"},
		{"Primary Key", "<u>Underlined Text</u>"},
		{"Total Participation", "<b>Thick Line</b>"},
		{"Key Constraint", "Arrow pointing to Diamond"},
	} {
		fmt.Fprintf(b, "\t\t\t\t<tr><td align=\"left\">%s</td><td>%s</td></tr>\n", row[0], row[1])
	}
	b.WriteString("\t\t\t</table>\n")
	b.WriteString("\t\t>];\n")
	b.WriteString("\t}\n")
}

func attributeID(table, column string) string {
	return quote(table + "_" + column)
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(id string) string {
	return `"` + dotEscaper.Replace(id) + `"`
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}

package formatter

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tordrt/footstats/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
	title  string
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer, title string) *MarkdownFormatter {
	if title == "" {
		title = "Database Schema"
	}
	return &MarkdownFormatter{writer: w, title: title}
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", f.title)

	for _, table := range s.Tables {
		formatMarkdownTable(&b, table)
	}

	_, err := io.WriteString(f.writer, b.String())
	return err
}

func formatMarkdownTable(b *strings.Builder, table schema.Table) {
	fmt.Fprintf(b, "## %s\n\n", table.Name)

	b.WriteString("### Columns\n\n")
	for _, col := range table.Columns {
		typeStr := col.Type
		if typeStr == "" {
			typeStr = "any"
		}
		if constraints := markdownConstraints(col, table.PrimaryKey); constraints != "" {
			fmt.Fprintf(b, "- **%s:** %s, %s\n", col.Name, typeStr, constraints)
		} else {
			fmt.Fprintf(b, "- **%s:** %s\n", col.Name, typeStr)
		}
	}
	b.WriteString("\n")

	if len(table.Relations) > 0 {
		b.WriteString("### References\n\n")
		for _, rel := range table.Relations {
			fmt.Fprintf(b, "- %s → %s.%s (%s)\n", rel.SourceColumn, rel.TargetTable, rel.TargetColumn, rel.Cardinality)
		}
		b.WriteString("\n")
	}
}

func markdownConstraints(col schema.Column, primaryKey []string) string {
	var constraints []string

	if slices.Contains(primaryKey, col.Name) {
		constraints = append(constraints, "PK")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.DefaultValue != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}
	if col.Derived {
		constraints = append(constraints, "derived by the target store")
	}

	return strings.Join(constraints, ", ")
}

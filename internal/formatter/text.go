package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/footstats/internal/schema"
)

// TextFormatter formats schema as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the schema in compact text format
func (f *TextFormatter) Format(s *schema.Schema) error {
	for i, table := range s.Tables {
		if i > 0 {
			if _, err := fmt.Fprintln(f.writer); err != nil {
				return err
			}
		}

		if err := f.formatTable(table); err != nil {
			return err
		}
	}
	return nil
}

func (f *TextFormatter) formatTable(table schema.Table) error {
	var b strings.Builder

	pkStr := ""
	if len(table.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	fmt.Fprintf(&b, "TABLE %s%s\n", table.Name, pkStr)

	for _, col := range table.Columns {
		fmt.Fprintf(&b, "  %s\n", formatColumn(col))
	}

	if len(table.Relations) > 0 {
		b.WriteString("  RELATIONS:\n")
		for _, rel := range table.Relations {
			fmt.Fprintf(&b, "    %s → %s.%s (%s)\n", rel.SourceColumn, rel.TargetTable, rel.TargetColumn, rel.Cardinality)
		}
	}

	_, err := io.WriteString(f.writer, b.String())
	return err
}

func formatColumn(col schema.Column) string {
	parts := []string{col.Name + ":"}

	typeStr := col.Type
	if typeStr == "" {
		typeStr = "ANY"
	}
	parts = append(parts, typeStr)

	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.DefaultValue != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}
	if col.Derived {
		parts = append(parts, "DERIVED")
	}

	return strings.Join(parts, " ")
}

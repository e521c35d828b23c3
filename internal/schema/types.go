package schema

// Schema represents a set of database tables
type Schema struct {
	Tables []Table
}

// Table represents a database table
type Table struct {
	Name       string
	Columns    []Column
	Relations  []Relation
	PrimaryKey []string
}

// Column represents a table column
type Column struct {
	Name         string
	Type         string
	Nullable     bool
	DefaultValue *string

	// Derived columns are computed by the target store and never copied.
	Derived bool
}

// Relation represents a foreign key relationship
type Relation struct {
	Name         string // relationship label, optional
	TargetTable  string
	TargetColumn string
	SourceColumn string
	Cardinality  string // 1:1, 1:N, N:1
}

// ColumnNames returns the names of the columns copied by a migration,
// in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		if col.Derived {
			continue
		}
		names = append(names, col.Name)
	}
	return names
}

// DependsOn returns the distinct tables referenced by the table's relations,
// ignoring self references.
func (t Table) DependsOn() []string {
	seen := make(map[string]bool)
	var deps []string
	for _, rel := range t.Relations {
		if rel.TargetTable == t.Name || seen[rel.TargetTable] {
			continue
		}
		seen[rel.TargetTable] = true
		deps = append(deps, rel.TargetTable)
	}
	return deps
}

// FindTable returns the named table, or nil when absent.
func (s *Schema) FindTable(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

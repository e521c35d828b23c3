package schema

import (
	"fmt"
	"strings"
)

// Catalog returns the tables copied from the source store, declared in the
// order they are loaded.
func Catalog() *Schema {
	return &Schema{Tables: []Table{
		{
			Name:       "Country",
			PrimaryKey: []string{"id"},
			Columns: []Column{
				{Name: "id", Type: "integer"},
				{Name: "name", Type: "text", Nullable: true},
			},
		},
		{
			Name:       "League",
			PrimaryKey: []string{"id"},
			Columns: []Column{
				{Name: "id", Type: "integer"},
				{Name: "name", Type: "text", Nullable: true},
				{Name: "country_id", Type: "integer", Nullable: true},
			},
			Relations: []Relation{
				{Name: "Located_In", SourceColumn: "country_id", TargetTable: "Country", TargetColumn: "id", Cardinality: "N:1"},
			},
		},
		{
			Name:       "Team",
			PrimaryKey: []string{"team_api_id"},
			Columns: []Column{
				{Name: "team_api_id", Type: "integer"},
				{Name: "team_long_name", Type: "text", Nullable: true},
				{Name: "team_short_name", Type: "text", Nullable: true},
				{Name: "total_points", Type: "integer", DefaultValue: strPtr("0"), Derived: true},
			},
		},
		{
			Name:       "Player",
			PrimaryKey: []string{"player_api_id"},
			Columns: []Column{
				{Name: "player_api_id", Type: "integer"},
				{Name: "player_name", Type: "text", Nullable: true},
				{Name: "birthday", Type: "timestamp", Nullable: true},
				{Name: "height", Type: "double precision", Nullable: true},
				{Name: "weight", Type: "integer", Nullable: true},
			},
		},
		{
			Name:       "Match",
			PrimaryKey: []string{"match_api_id"},
			Columns: []Column{
				{Name: "match_api_id", Type: "integer"},
				{Name: "league_id", Type: "integer", Nullable: true},
				{Name: "season", Type: "text", Nullable: true},
				{Name: "date", Type: "timestamp", Nullable: true},
				{Name: "stage", Type: "integer", Nullable: true},
				{Name: "home_team_api_id", Type: "integer", Nullable: true},
				{Name: "away_team_api_id", Type: "integer", Nullable: true},
				{Name: "home_team_goal", Type: "integer", Nullable: true},
				{Name: "away_team_goal", Type: "integer", Nullable: true},
			},
			Relations: []Relation{
				{Name: "Belongs_To", SourceColumn: "league_id", TargetTable: "League", TargetColumn: "id", Cardinality: "N:1"},
				{Name: "Plays_Home", SourceColumn: "home_team_api_id", TargetTable: "Team", TargetColumn: "team_api_id", Cardinality: "N:1"},
				{Name: "Plays_Away", SourceColumn: "away_team_api_id", TargetTable: "Team", TargetColumn: "team_api_id", Cardinality: "N:1"},
			},
		},
	}}
}

// LoadOrder returns the tables of s ordered so that every table comes after
// the tables it references. Among tables whose dependencies are satisfied,
// declaration order wins.
func LoadOrder(s *Schema) ([]Table, error) {
	index := make(map[string]int, len(s.Tables))
	for i, table := range s.Tables {
		if _, dup := index[table.Name]; dup {
			return nil, fmt.Errorf("table %s declared twice", table.Name)
		}
		index[table.Name] = i
	}

	for _, table := range s.Tables {
		for _, dep := range table.DependsOn() {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("table %s references undeclared table %s", table.Name, dep)
			}
		}
	}

	ordered := make([]Table, 0, len(s.Tables))
	placed := make(map[string]bool, len(s.Tables))
	for len(ordered) < len(s.Tables) {
		progressed := false
		for _, table := range s.Tables {
			if placed[table.Name] || !ready(table, placed) {
				continue
			}
			ordered = append(ordered, table)
			placed[table.Name] = true
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among tables: %s", strings.Join(unplaced(s, placed), ", "))
		}
	}

	return ordered, nil
}

func ready(table Table, placed map[string]bool) bool {
	for _, dep := range table.DependsOn() {
		if !placed[dep] {
			return false
		}
	}
	return true
}

func unplaced(s *Schema, placed map[string]bool) []string {
	var names []string
	for _, table := range s.Tables {
		if !placed[table.Name] {
			names = append(names, table.Name)
		}
	}
	return names
}

func strPtr(s string) *string {
	return &s
}

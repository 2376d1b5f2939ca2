package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Render formats for the schema command.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatDDL  = "ddl"
)

// Column is a flattened top-level column as stored by a relational sink.
// Repeated and record fields are stored as JSON text.
type Column struct {
	Name     string
	Field    Field
	SQLType  string
	Encoded  bool // value is JSON encoded
	Nullable bool
}

// Columns maps every top-level field to a SQLite column.
func (t Table) Columns() []Column {
	cols := make([]Column, 0, len(t.Fields))
	for _, f := range t.Fields {
		col := Column{Name: f.Name, Field: f, Nullable: f.Mode != ModeRequired}
		switch {
		case !f.IsLeaf():
			col.SQLType = "TEXT"
			col.Encoded = true
		case f.Type == TypeInteger, f.Type == TypeBoolean:
			col.SQLType = "INTEGER"
		default:
			col.SQLType = "TEXT"
		}
		cols = append(cols, col)
	}
	return cols
}

// SQLiteDDL returns a CREATE TABLE IF NOT EXISTS statement for the table.
func (t Table) SQLiteDDL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdent(table))
	cols := t.Columns()
	for i, col := range cols {
		fmt.Fprintf(&b, "    %s %s", QuoteIdent(col.Name), col.SQLType)
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");\n")
	return b.String()
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Render serializes the table in the given format. The JSON form is the bare
// field list, as warehouse load tools expect.
func (t Table) Render(format, table string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return json.MarshalIndent(t.Fields, "", "  ")
	case FormatYAML:
		return yaml.Marshal(t)
	case FormatDDL:
		if table == "" {
			return nil, fmt.Errorf("ddl format needs a table name")
		}
		return []byte(t.SQLiteDDL(table)), nil
	default:
		return nil, fmt.Errorf("unsupported schema format %q (want json, yaml or ddl)", format)
	}
}

// ParseJSON reads a field list produced by Render(FormatJSON).
func ParseJSON(data []byte) (Table, error) {
	var fields []Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return Table{}, fmt.Errorf("parse schema: %w", err)
	}
	t := Table{Fields: fields}
	if err := t.Validate(); err != nil {
		return Table{}, fmt.Errorf("invalid schema: %w", err)
	}
	return t, nil
}

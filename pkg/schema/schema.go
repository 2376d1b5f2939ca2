// Package schema describes the warehouse table shape of a normalized host
// scan record as a tree of fields.
//
// The tree is built in one call by Build and is never modified afterwards;
// sinks receive it once before any rows are written.
package schema

import (
	"fmt"
	"strings"

	"github.com/hostscan/hostscan/pkg/record"
)

// FieldType is the column type of a field.
type FieldType string

const (
	TypeString  FieldType = "STRING"
	TypeInteger FieldType = "INTEGER"
	TypeBoolean FieldType = "BOOLEAN"
	TypeRecord  FieldType = "RECORD"
)

// FieldMode says whether a field may be null, must be set, or repeats.
type FieldMode string

const (
	ModeNullable FieldMode = "NULLABLE"
	ModeRequired FieldMode = "REQUIRED"
	ModeRepeated FieldMode = "REPEATED"
)

// Field is one node of the schema tree. Fields is only set for TypeRecord.
type Field struct {
	Name   string    `json:"name" yaml:"name"`
	Type   FieldType `json:"type" yaml:"type"`
	Mode   FieldMode `json:"mode" yaml:"mode"`
	Fields []Field   `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Table is the full row shape: the ordered list of top-level fields.
type Table struct {
	Fields []Field `json:"fields" yaml:"fields"`
}

func str(name string) Field { return Field{Name: name, Type: TypeString, Mode: ModeNullable} }

func integer(name string) Field { return Field{Name: name, Type: TypeInteger, Mode: ModeNullable} }

func boolean(name string) Field { return Field{Name: name, Type: TypeBoolean, Mode: ModeNullable} }

// Build returns the schema of record.Record. Every call returns a new,
// structurally identical tree.
func Build() Table {
	return Table{Fields: []Field{
		integer("Alexa_rank"),
		str("Alexa_domain"),

		str("DMOZ_title"),
		str("DMOZ_description"),
		str("DMOZ_url"),
		{Name: "DMOZ_topic", Type: TypeString, Mode: ModeRepeated},

		str("Host"),
		str("FinalLocation"),
		boolean("HTTPOk"),
		boolean("HTTPSOk"),
		boolean("HTTPSOnly"),

		ResponseField(record.FieldHTTPResponses),
		ResponseField(record.FieldHTTPSResponses),
		str("Error"),
	}}
}

// ResponseField returns the repeated record describing a response list.
func ResponseField(name string) Field {
	return Field{
		Name: name,
		Type: TypeRecord,
		Mode: ModeRepeated,
		Fields: []Field{
			str("RequestURL"),
			integer("Status"),
			str("Protocol"),
			{
				Name: "Headers",
				Type: TypeRecord,
				Mode: ModeRepeated,
				Fields: []Field{
					str("Name"),
					{Name: "Value", Type: TypeString, Mode: ModeRepeated},
				},
			},
			{
				Name: "TLS",
				Type: TypeRecord,
				Mode: ModeNullable,
				Fields: []Field{
					str("CipherSuite"),
					str("ServerName"),
					boolean("HandshakeComplete"),
					str("Version"),
					str("NegotiatedProtocol"),
				},
			},
		},
	}
}

// IsLeaf reports whether the field holds a single scalar value.
func (f Field) IsLeaf() bool {
	return f.Type != TypeRecord && f.Mode != ModeRepeated
}

// Equal reports whether two fields have the same name, type, mode and
// children, in the same order.
func (f Field) Equal(other Field) bool {
	if f.Name != other.Name || f.Type != other.Type || f.Mode != other.Mode {
		return false
	}
	return fieldsEqual(f.Fields, other.Fields)
}

// Equal reports whether two tables have structurally identical trees.
func (t Table) Equal(other Table) bool {
	return fieldsEqual(t.Fields, other.Fields)
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Lookup walks the tree by field names, e.g. Lookup("HTTPSResponses", "TLS", "Version").
func (t Table) Lookup(path ...string) (Field, bool) {
	fields := t.Fields
	var found Field
	for _, name := range path {
		ok := false
		for _, f := range fields {
			if f.Name == name {
				found, ok = f, true
				break
			}
		}
		if !ok {
			return Field{}, false
		}
		fields = found.Fields
	}
	return found, len(path) > 0
}

// Names returns the top-level field names in order.
func (t Table) Names() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks the invariants every tree must hold: non-empty unique names
// per level, known types and modes, and children only on records.
func (t Table) Validate() error {
	return validateFields("", t.Fields)
}

func validateFields(prefix string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		if f.Name == "" {
			return fmt.Errorf("field under %q has no name", prefix)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", path)
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeString, TypeInteger, TypeBoolean:
			if len(f.Fields) > 0 {
				return fmt.Errorf("field %q: %s fields cannot have children", path, strings.ToLower(string(f.Type)))
			}
		case TypeRecord:
			if len(f.Fields) == 0 {
				return fmt.Errorf("field %q: record without children", path)
			}
			if err := validateFields(path, f.Fields); err != nil {
				return err
			}
		default:
			return fmt.Errorf("field %q: unknown type %q", path, f.Type)
		}

		switch f.Mode {
		case ModeNullable, ModeRequired, ModeRepeated:
		default:
			return fmt.Errorf("field %q: unknown mode %q", path, f.Mode)
		}
	}
	return nil
}

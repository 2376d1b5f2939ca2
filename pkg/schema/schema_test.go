package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hostscan/hostscan/pkg/record"
)

func expectedResponse(name string) Field {
	return Field{Name: name, Type: TypeRecord, Mode: ModeRepeated, Fields: []Field{
		{Name: "RequestURL", Type: TypeString, Mode: ModeNullable},
		{Name: "Status", Type: TypeInteger, Mode: ModeNullable},
		{Name: "Protocol", Type: TypeString, Mode: ModeNullable},
		{Name: "Headers", Type: TypeRecord, Mode: ModeRepeated, Fields: []Field{
			{Name: "Name", Type: TypeString, Mode: ModeNullable},
			{Name: "Value", Type: TypeString, Mode: ModeRepeated},
		}},
		{Name: "TLS", Type: TypeRecord, Mode: ModeNullable, Fields: []Field{
			{Name: "CipherSuite", Type: TypeString, Mode: ModeNullable},
			{Name: "ServerName", Type: TypeString, Mode: ModeNullable},
			{Name: "HandshakeComplete", Type: TypeBoolean, Mode: ModeNullable},
			{Name: "Version", Type: TypeString, Mode: ModeNullable},
			{Name: "NegotiatedProtocol", Type: TypeString, Mode: ModeNullable},
		}},
	}}
}

func TestBuild_TopLevelFields(t *testing.T) {
	tbl := Build()
	require.Equal(t, []string{
		"Alexa_rank", "Alexa_domain",
		"DMOZ_title", "DMOZ_description", "DMOZ_url", "DMOZ_topic",
		"Host", "FinalLocation", "HTTPOk", "HTTPSOk", "HTTPSOnly",
		"HTTPResponses", "HTTPSResponses", "Error",
	}, tbl.Names())
	require.NoError(t, tbl.Validate())
}

func TestBuild_TreeEquality(t *testing.T) {
	want := Table{Fields: []Field{
		{Name: "Alexa_rank", Type: TypeInteger, Mode: ModeNullable},
		{Name: "Alexa_domain", Type: TypeString, Mode: ModeNullable},
		{Name: "DMOZ_title", Type: TypeString, Mode: ModeNullable},
		{Name: "DMOZ_description", Type: TypeString, Mode: ModeNullable},
		{Name: "DMOZ_url", Type: TypeString, Mode: ModeNullable},
		{Name: "DMOZ_topic", Type: TypeString, Mode: ModeRepeated},
		{Name: "Host", Type: TypeString, Mode: ModeNullable},
		{Name: "FinalLocation", Type: TypeString, Mode: ModeNullable},
		{Name: "HTTPOk", Type: TypeBoolean, Mode: ModeNullable},
		{Name: "HTTPSOk", Type: TypeBoolean, Mode: ModeNullable},
		{Name: "HTTPSOnly", Type: TypeBoolean, Mode: ModeNullable},
		expectedResponse("HTTPResponses"),
		expectedResponse("HTTPSResponses"),
		{Name: "Error", Type: TypeString, Mode: ModeNullable},
	}}

	got := Build()
	require.True(t, want.Equal(got))
	require.Equal(t, want, got)
}

func TestBuild_Deterministic(t *testing.T) {
	a, b := Build(), Build()
	require.True(t, a.Equal(b))

	// Each call hands out its own tree.
	a.Fields[0].Name = "mutated"
	require.Equal(t, "Alexa_rank", Build().Fields[0].Name)
	require.False(t, a.Equal(b))
}

func TestBuild_ResponseListsShareShape(t *testing.T) {
	tbl := Build()
	httpField, ok := tbl.Lookup(record.FieldHTTPResponses)
	require.True(t, ok)
	httpsField, ok := tbl.Lookup(record.FieldHTTPSResponses)
	require.True(t, ok)

	require.True(t, fieldsEqual(httpField.Fields, httpsField.Fields))
	require.True(t, expectedResponse(record.FieldHTTPSResponses).Equal(httpsField))
}

func TestLookup(t *testing.T) {
	tbl := Build()

	f, ok := tbl.Lookup("HTTPSResponses", "TLS", "HandshakeComplete")
	require.True(t, ok)
	require.Equal(t, TypeBoolean, f.Type)

	f, ok = tbl.Lookup("HTTPResponses", "Headers", "Value")
	require.True(t, ok)
	require.Equal(t, ModeRepeated, f.Mode)

	_, ok = tbl.Lookup("HTTPResponses", "Body")
	require.False(t, ok)
	_, ok = tbl.Lookup()
	require.False(t, ok)
}

// The schema and the normalized record must describe the same shape: every
// JSON key of record.Record is a field and vice versa, recursively.
func TestBuild_MatchesRecordShape(t *testing.T) {
	var walk func(t *testing.T, typ reflect.Type, fields []Field, path string)
	walk = func(t *testing.T, typ reflect.Type, fields []Field, path string) {
		keys := jsonKeys(typ)
		names := make([]string, 0, len(fields))
		for _, f := range fields {
			names = append(names, f.Name)
		}
		require.ElementsMatch(t, names, keyNames(keys), "fields under %q", path)

		for _, f := range fields {
			if f.Type != TypeRecord {
				continue
			}
			child := keys[f.Name]
			for child.Kind() == reflect.Slice || child.Kind() == reflect.Pointer {
				child = child.Elem()
			}
			walk(t, child, f.Fields, path+"."+f.Name)
		}
	}

	walk(t, reflect.TypeOf(record.Record{}), Build().Fields, "")
}

func jsonKeys(typ reflect.Type) map[string]reflect.Type {
	keys := map[string]reflect.Type{}
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if sf.Anonymous {
			for k, v := range jsonKeys(sf.Type) {
				keys[k] = v
			}
			continue
		}
		name := strings.Split(sf.Tag.Get("json"), ",")[0]
		if name == "" {
			name = sf.Name
		}
		keys[name] = sf.Type
	}
	return keys
}

func keyNames(m map[string]reflect.Type) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		tbl  Table
		msg  string
	}{
		{"empty name", Table{Fields: []Field{{Type: TypeString, Mode: ModeNullable}}}, "no name"},
		{"duplicate", Table{Fields: []Field{str("A"), str("A")}}, "duplicate"},
		{"leaf with children", Table{Fields: []Field{{Name: "A", Type: TypeString, Mode: ModeNullable, Fields: []Field{str("B")}}}}, "cannot have children"},
		{"empty record", Table{Fields: []Field{{Name: "A", Type: TypeRecord, Mode: ModeNullable}}}, "without children"},
		{"bad type", Table{Fields: []Field{{Name: "A", Type: "FLOAT", Mode: ModeNullable}}}, "unknown type"},
		{"bad mode", Table{Fields: []Field{{Name: "A", Type: TypeString, Mode: "OPTIONAL"}}}, "unknown mode"},
		{"nested duplicate", Table{Fields: []Field{{Name: "R", Type: TypeRecord, Mode: ModeRepeated, Fields: []Field{str("x"), str("x")}}}}, `"R.x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tbl.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRender_JSONRoundTrip(t *testing.T) {
	data, err := Build().Render(FormatJSON, "")
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 14)
	require.Equal(t, "Alexa_rank", raw[0]["name"])
	require.Equal(t, "INTEGER", raw[0]["type"])
	require.Equal(t, "NULLABLE", raw[0]["mode"])
	require.NotContains(t, raw[0], "fields")

	parsed, err := ParseJSON(data)
	require.NoError(t, err)
	require.True(t, Build().Equal(parsed))
}

func TestRender_YAML(t *testing.T) {
	data, err := Build().Render(FormatYAML, "")
	require.NoError(t, err)

	var back Table
	require.NoError(t, yaml.Unmarshal(data, &back))
	require.True(t, Build().Equal(back))
}

func TestRender_DDL(t *testing.T) {
	data, err := Build().Render(FormatDDL, "hosts")
	require.NoError(t, err)

	ddl := string(data)
	require.True(t, strings.HasPrefix(ddl, `CREATE TABLE IF NOT EXISTS "hosts" (`))
	require.Contains(t, ddl, `"Alexa_rank" INTEGER,`)
	require.Contains(t, ddl, `"HTTPOk" INTEGER,`)
	require.Contains(t, ddl, `"DMOZ_topic" TEXT,`)
	require.Contains(t, ddl, `"HTTPSResponses" TEXT,`)
	require.Contains(t, ddl, `"Error" TEXT`+"\n);")

	_, err = Build().Render(FormatDDL, "")
	require.Error(t, err)
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Build().Render("xml", "")
	require.Error(t, err)
}

func TestColumns(t *testing.T) {
	cols := Build().Columns()
	require.Len(t, cols, 14)

	byName := map[string]Column{}
	for _, c := range cols {
		byName[c.Name] = c
	}
	require.False(t, byName["Host"].Encoded)
	require.True(t, byName["DMOZ_topic"].Encoded)
	require.True(t, byName["HTTPResponses"].Encoded)
	require.Equal(t, "INTEGER", byName["HTTPSOnly"].SQLType)
	require.True(t, byName["Error"].Nullable)
}

func TestQuoteIdent(t *testing.T) {
	require.Equal(t, `"plain"`, QuoteIdent("plain"))
	require.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

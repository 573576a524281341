package testdata

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"routekit/internal/types"
	"routekit/pkg/endpoint"
)

// Generator handles the generation of test data templates
type Generator struct {
	outputDir string
	format    string
}

// NewGenerator creates a generator writing json or yaml templates to outputDir
func NewGenerator(outputDir, format string) *Generator {
	if format != "yaml" {
		format = "json"
	}
	return &Generator{outputDir: outputDir, format: format}
}

// GenerateTemplate writes a template with sample values for every operation
// and returns its path
func (g *Generator) GenerateTemplate(ops []types.Operation) (string, error) {
	path := filepath.Join(g.outputDir, "testdata_template."+g.format)
	if err := WriteFile(path, g.Build(ops)); err != nil {
		return "", err
	}
	return path, nil
}

// Build returns sample fixtures for every operation
func (g *Generator) Build(ops []types.Operation) *TestData {
	data := &TestData{Endpoints: make(map[string]Fixture, len(ops))}
	for _, op := range ops {
		data.Endpoints[op.Key()] = g.GenerateFixture(op)
	}
	return data
}

// GenerateFixture builds a fixture whose params follow the operation's
// parameter order and whose payload matches its body encoding
func (g *Generator) GenerateFixture(op types.Operation) Fixture {
	fixture := Fixture{
		Headers: map[string]string{"Accept": "application/json"},
	}

	params := endpoint.NewValues()
	for _, param := range op.Parameters {
		schema, _ := param.Schema.(*openapi3.SchemaRef)
		switch param.In {
		case openapi3.ParameterInPath, openapi3.ParameterInQuery:
			params.Set(param.Name, sampleValue(schema, nil))
		case openapi3.ParameterInHeader:
			if value := sampleValue(schema, nil); value != nil {
				fixture.Headers[param.Name] = fmt.Sprint(value)
			}
		}
	}
	if params.Len() > 0 {
		fixture.Params = params
	}

	if op.BodyEncoding == types.BodyNone {
		return fixture
	}
	schema, _ := op.BodySchema.(*openapi3.SchemaRef)
	payload, ok := sampleValue(schema, nil).(*endpoint.Values)
	if !ok {
		payload = endpoint.NewValues()
	}
	if op.BodyEncoding == types.BodyForm {
		fixture.FormData = payload
	} else {
		fixture.Body = payload
	}
	return fixture
}

// sampleValue generates a sample value based on the schema type. Objects
// become *endpoint.Values with properties in name order. seen holds the
// schemas on the current path; a schema that refers back to one of them
// samples as nil, and an array of such items as an empty list.
func sampleValue(ref *openapi3.SchemaRef, seen map[*openapi3.Schema]bool) any {
	if ref == nil || ref.Value == nil {
		return nil
	}
	schema := ref.Value

	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}
	if schema.Example != nil {
		return schema.Example
	}
	if schema.Default != nil {
		return schema.Default
	}
	if seen[schema] {
		return nil
	}

	switch {
	case schema.Type.Is(openapi3.TypeString):
		return sampleString(schema)
	case schema.Type.Is(openapi3.TypeNumber):
		if schema.Format == "double" {
			return 123.456789
		}
		return 123.45
	case schema.Type.Is(openapi3.TypeInteger):
		if schema.Format == "int64" {
			return 123456789
		}
		return 123
	case schema.Type.Is(openapi3.TypeBoolean):
		return true
	}

	if seen == nil {
		seen = make(map[*openapi3.Schema]bool)
	}
	seen[schema] = true
	defer delete(seen, schema)

	switch {
	case schema.Type.Is(openapi3.TypeArray):
		if schema.Items == nil {
			return []any{"sample_item"}
		}
		item := sampleValue(schema.Items, seen)
		if item == nil {
			return []any{}
		}
		return []any{item}
	case schema.Type.Is(openapi3.TypeObject), len(schema.Properties) > 0:
		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		obj := endpoint.NewValues()
		for _, name := range names {
			obj.Set(name, sampleValue(schema.Properties[name], seen))
		}
		return obj
	}
	return nil
}

func sampleString(schema *openapi3.Schema) string {
	switch schema.Format {
	case "email":
		return "test@example.com"
	case "date":
		return "2024-01-01"
	case "date-time":
		return "2024-01-01T12:00:00Z"
	case "uuid":
		return uuid.NewString()
	case "uri":
		return "https://example.com"
	case "ipv4":
		return "192.168.1.1"
	case "ipv6":
		return "2001:db8::1"
	}
	if strings.Contains(schema.Pattern, `\d`) {
		return "12345"
	}
	return "sample_string"
}

package testdata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routekit/internal/parser"
	"routekit/internal/types"
	"routekit/pkg/endpoint"
)

func schemaOf(typ string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{typ}}}
}

func petOperation() types.Operation {
	tags := schemaOf(openapi3.TypeArray)
	tags.Value.Items = schemaOf(openapi3.TypeString)

	body := schemaOf(openapi3.TypeObject)
	body.Value.Properties = openapi3.Schemas{
		"name":        schemaOf(openapi3.TypeString),
		"age":         schemaOf(openapi3.TypeInteger),
		"vaccinated":  schemaOf(openapi3.TypeBoolean),
		"ownerId":     {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "uuid"}},
		"temperament": {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: []any{"calm", "playful"}}},
	}

	return types.Operation{
		ID: "updatePet",
		Shape: endpoint.Shape{
			Method:      "PUT",
			URITemplate: "/pets/{petId}",
			RouteParams: []string{"petId"},
			Whitelist:   []string{"tags[]"},
		},
		BodyEncoding: types.BodyJSON,
		BodySchema:   body,
		Parameters: []types.Parameter{
			{Name: "petId", In: "path", Required: true, Schema: schemaOf(openapi3.TypeInteger)},
			{Name: "tags", In: "query", List: true, Schema: tags},
			{Name: "X-Trace", In: "header", Schema: schemaOf(openapi3.TypeString)},
		},
	}
}

func TestGenerateFixture(t *testing.T) {
	f := NewGenerator(t.TempDir(), "json").GenerateFixture(petOperation())

	assert.Equal(t, []string{"petId", "tags"}, f.Params.Keys())
	petID, _ := f.Params.Get("petId")
	assert.Equal(t, 123, petID)
	tags, _ := f.Params.Get("tags")
	assert.Equal(t, []any{"sample_string"}, tags)

	assert.Equal(t, "sample_string", f.Headers["X-Trace"])
	assert.Equal(t, "application/json", f.Headers["Accept"])

	require.NotNil(t, f.Body)
	assert.Nil(t, f.FormData)
	assert.Equal(t, []string{"age", "name", "ownerId", "temperament", "vaccinated"}, f.Body.Keys())
	owner, _ := f.Body.Get("ownerId")
	_, err := uuid.Parse(owner.(string))
	assert.NoError(t, err)
	temperament, _ := f.Body.Get("temperament")
	assert.Equal(t, "calm", temperament)
}

func TestGenerateFixtureForm(t *testing.T) {
	op := petOperation()
	op.BodyEncoding = types.BodyForm

	f := NewGenerator(t.TempDir(), "json").GenerateFixture(op)
	assert.Nil(t, f.Body)
	require.NotNil(t, f.FormData)
	assert.True(t, f.FormData.Has("name"))
}

func TestGeneratedFixtureAppliesToEndpoint(t *testing.T) {
	op := petOperation()
	f := NewGenerator(t.TempDir(), "json").GenerateFixture(op)

	e := op.NewEndpoint()
	require.NoError(t, f.Apply(e))
	assert.Equal(t, "pets/123", e.URI())
	assert.Equal(t, []string{"tags"}, e.Params().Keys())
	assert.Equal(t, f.Body.Keys(), e.Body().Keys())
}

func TestFixtureApplyRejectsUnknownParams(t *testing.T) {
	f := Fixture{Params: endpoint.ValuesOf("color", "red")}
	err := f.Apply(petOperation().NewEndpoint())
	require.Error(t, err)
	assert.True(t, errors.Is(err, endpoint.ErrInvalidParameter))
}

func TestFixtureApplyRejectsBodyAndFormData(t *testing.T) {
	e := petOperation().NewEndpoint()
	f := Fixture{
		Body:     endpoint.ValuesOf("name", "Rex"),
		FormData: endpoint.ValuesOf("name", "Rex"),
	}
	err := f.Apply(e)
	assert.ErrorIs(t, err, ErrConflictingPayload)
	assert.Nil(t, e.Body())
	assert.Nil(t, e.FormData())
}

func TestGenerateTemplateRoundTrip(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			path, err := NewGenerator(dir, format).GenerateTemplate([]types.Operation{petOperation()})
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "testdata_template."+format), path)

			loader := NewLoader(dir)
			f, err := loader.GetTestDataForOperation(petOperation())
			require.NoError(t, err)
			assert.Equal(t, path, loader.Path())
			assert.Equal(t, []string{"petId", "tags"}, f.Params.Keys())
			assert.Equal(t, []string{"age", "name", "ownerId", "temperament", "vaccinated"}, f.Body.Keys())
		})
	}
}

func TestLoaderPrefersUserFixtures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testdata_template.json"), []byte(`{"endpoints":{}}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testdata.yaml"), []byte(`
endpoints:
  GET /pets/{petId}:
    params:
      zeta: 1
      petId: 7
      alpha: 2
    headers:
      X-Trace: abc
`), 0644))

	loader := NewLoader(dir)
	data, err := loader.LoadTestData()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "testdata.yaml"), loader.Path())

	f := data.Endpoints["GET /pets/{petId}"]
	assert.Equal(t, []string{"zeta", "petId", "alpha"}, f.Params.Keys())
	assert.Equal(t, "abc", f.Headers["X-Trace"])
	assert.Nil(t, f.Body)
}

func TestLoaderMissingFixture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testdata.json"), []byte(`{"endpoints":{"GET /other":{}}}`), 0644))

	_, err := NewLoader(dir).GetTestDataForOperation(petOperation())
	assert.ErrorIs(t, err, ErrNoFixture)
}

func TestLoaderNoFiles(t *testing.T) {
	_, err := NewLoader(t.TempDir()).LoadTestData()
	assert.Error(t, err)
}

func TestReadFileKeepsJSONOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"endpoints":{"POST /pets":{"body":{"zeta":1,"alpha":{"b":2,"a":1}}}}}`), 0644))

	data, err := ReadFile(path)
	require.NoError(t, err)
	body := data.Endpoints["POST /pets"].Body
	assert.Equal(t, []string{"zeta", "alpha"}, body.Keys())

	zeta, _ := body.Get("zeta")
	assert.Equal(t, json.Number("1"), zeta)
	alpha, _ := body.Get("alpha")
	assert.Equal(t, []string{"b", "a"}, alpha.(*endpoint.Values).Keys())
}

const categoryDoc = `
openapi: 3.0.3
info:
  title: Catalog
  version: "1.0"
paths:
  /categories:
    post:
      operationId: addCategory
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Category'
      responses:
        "201":
          description: created
components:
  schemas:
    Category:
      type: object
      properties:
        name:
          type: string
        parent:
          $ref: '#/components/schemas/Category'
        children:
          type: array
          items:
            $ref: '#/components/schemas/Category'
`

func TestGenerateFixtureRecursiveSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(categoryDoc), 0644))
	ops, err := parser.NewSwaggerParser(path).ParseOperations(context.Background())
	require.NoError(t, err)
	require.Len(t, ops, 1)

	g := NewGenerator(t.TempDir(), "json")
	f := g.GenerateFixture(ops[0])
	require.NotNil(t, f.Body)
	assert.Equal(t, []string{"children", "name", "parent"}, f.Body.Keys())

	children, _ := f.Body.Get("children")
	assert.Equal(t, []any{}, children)
	parent, ok := f.Body.Get("parent")
	assert.True(t, ok)
	assert.Nil(t, parent)

	out, err := g.GenerateTemplate(ops)
	require.NoError(t, err)
	assert.FileExists(t, out)
}

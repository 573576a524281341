package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"

	"routekit/internal/types"
	"routekit/pkg/endpoint"
)

// documentPaths are tried in order when the source is a service base URL
var documentPaths = []string{
	"/swagger/v1/swagger.json",
	"/swagger.json",
	"/v1/swagger.json",
	"/api/swagger.json",
	"/api/v1/swagger.json",
	"/openapi.json",
	"/openapi.yaml",
	"/swagger/v1/swagger",
	"/swagger",
}

// SwaggerParser extracts operation shapes from a Swagger/OpenAPI document
type SwaggerParser struct {
	source string
	client *http.Client
	log    zerolog.Logger
	doc    *openapi3.T
}

// Option configures a SwaggerParser
type Option func(*SwaggerParser)

// WithHTTPClient sets the client used to fetch remote documents
func WithHTTPClient(c *http.Client) Option {
	return func(p *SwaggerParser) { p.client = c }
}

// WithLogger sets the parser's logger
func WithLogger(l zerolog.Logger) Option {
	return func(p *SwaggerParser) { p.log = l }
}

// NewSwaggerParser creates a parser for source, which is a file path, the URL
// of a document, or a service base URL probed for well-known document paths
func NewSwaggerParser(source string, opts ...Option) *SwaggerParser {
	p := &SwaggerParser{
		source: strings.TrimRight(source, "/"),
		client: &http.Client{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Document returns the loaded document, or nil before Load
func (p *SwaggerParser) Document() *openapi3.T {
	return p.doc
}

// Load reads and resolves the OpenAPI document
func (p *SwaggerParser) Load(ctx context.Context) (*openapi3.T, error) {
	if p.doc != nil {
		return p.doc, nil
	}

	if !isRemote(p.source) {
		loader := newLoader(ctx)
		doc, err := loader.LoadFromFile(p.source)
		if err != nil {
			return nil, fmt.Errorf("failed to load OpenAPI doc %s: %w", p.source, err)
		}
		p.doc = doc
		return doc, nil
	}

	var lastErr error
	for _, u := range p.candidateURLs() {
		p.log.Debug().Str("url", u).Msg("fetching OpenAPI documentation")
		doc, err := p.fetchOpenAPIDoc(ctx, u)
		if err == nil {
			p.log.Info().Str("url", u).Msg("fetched OpenAPI documentation")
			p.doc = doc
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Debug().Err(err).Str("url", u).Msg("fetch failed")
		lastErr = err
	}
	return nil, fmt.Errorf("failed to fetch OpenAPI documentation from any known URL: %w", lastErr)
}

// ParseOperations loads the document and returns its operations sorted by
// path, then method
func (p *SwaggerParser) ParseOperations(ctx context.Context) ([]types.Operation, error) {
	doc, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractOperations(doc), nil
}

func (p *SwaggerParser) candidateURLs() []string {
	ext := strings.ToLower(path.Ext(p.source))
	if ext == ".json" || ext == ".yaml" || ext == ".yml" {
		return []string{p.source}
	}
	urls := make([]string, len(documentPaths))
	for i, suffix := range documentPaths {
		urls[i] = p.source + suffix
	}
	return urls
}

// fetchOpenAPIDoc fetches the OpenAPI documentation from the given URL
func (p *SwaggerParser) fetchOpenAPIDoc(ctx context.Context, rawURL string) (*openapi3.T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	loader := newLoader(ctx)
	location, _ := url.Parse(rawURL)
	doc, err := loader.LoadFromDataWithPath(body, location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	return doc, nil
}

func newLoader(ctx context.Context) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	return loader
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// ExtractOperations converts every path operation of doc into an Operation
func ExtractOperations(doc *openapi3.T) []types.Operation {
	if doc == nil || doc.Paths == nil {
		return nil
	}

	var ops []types.Operation
	for uriTemplate, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			ops = append(ops, extractOperation(uriTemplate, strings.ToUpper(method), item, op))
		}
	}

	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Shape.URITemplate != ops[j].Shape.URITemplate {
			return ops[i].Shape.URITemplate < ops[j].Shape.URITemplate
		}
		return ops[i].Shape.Method < ops[j].Shape.Method
	})
	return ops
}

func extractOperation(uriTemplate, method string, item *openapi3.PathItem, op *openapi3.Operation) types.Operation {
	out := types.Operation{
		ID:           op.OperationID,
		Summary:      op.Summary,
		BodyEncoding: types.BodyNone,
		Shape: endpoint.Shape{
			Method:      method,
			URITemplate: uriTemplate,
		},
	}
	if out.ID == "" {
		out.ID = operationID(method, uriTemplate)
	}

	for _, param := range mergeParameters(item.Parameters, op.Parameters) {
		list := isArray(param.Schema)
		out.Parameters = append(out.Parameters, types.Parameter{
			Name:     param.Name,
			In:       param.In,
			Required: param.Required,
			List:     list,
			Schema:   param.Schema,
		})

		switch param.In {
		case openapi3.ParameterInPath:
			out.Shape.RouteParams = append(out.Shape.RouteParams, param.Name)
		case openapi3.ParameterInQuery:
			name := param.Name
			if list && !strings.HasSuffix(name, endpoint.ListMarker) {
				name += endpoint.ListMarker
			}
			out.Shape.Whitelist = append(out.Shape.Whitelist, name)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		out.BodyEncoding, out.BodySchema = bodyEncoding(op.RequestBody.Value.Content)
	}
	return out
}

// mergeParameters lets operation-level parameters override path-level ones
// with the same name and location
func mergeParameters(pathLevel, opLevel openapi3.Parameters) []*openapi3.Parameter {
	var out []*openapi3.Parameter
	index := make(map[string]int)
	for _, refs := range []openapi3.Parameters{pathLevel, opLevel} {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			key := ref.Value.In + ":" + ref.Value.Name
			if i, ok := index[key]; ok {
				out[i] = ref.Value
				continue
			}
			index[key] = len(out)
			out = append(out, ref.Value)
		}
	}
	return out
}

// bodyEncoding prefers JSON; form encoding is used only when the operation
// accepts nothing but form content
func bodyEncoding(content openapi3.Content) (types.BodyEncoding, interface{}) {
	var formSchema *openapi3.SchemaRef
	hasForm := false
	for _, contentType := range sortedKeys(content) {
		media := content[contentType]
		ct := strings.ToLower(contentType)
		switch {
		case strings.Contains(ct, "json"):
			var schema interface{}
			if media != nil && media.Schema != nil {
				schema = media.Schema
			}
			return types.BodyJSON, schema
		case ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data":
			if !hasForm && media != nil {
				formSchema = media.Schema
			}
			hasForm = true
		}
	}
	if hasForm {
		if formSchema == nil {
			return types.BodyForm, nil
		}
		return types.BodyForm, formSchema
	}
	return types.BodyNone, nil
}

func sortedKeys(content openapi3.Content) []string {
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isArray(schema *openapi3.SchemaRef) bool {
	return schema != nil && schema.Value != nil && schema.Value.Type != nil && schema.Value.Type.Is(openapi3.TypeArray)
}

// operationID derives an identifier such as getPetsPetId from method and path
func operationID(method, uriTemplate string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	upper := true
	for _, r := range uriTemplate {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Find looks up an operation by ID or by its "METHOD /path" key
func Find(ops []types.Operation, ref string) (types.Operation, bool) {
	method, uriTemplate, isKey := types.ParseEndpointKey(ref)
	for _, op := range ops {
		if op.ID == ref {
			return op, true
		}
		if isKey && strings.EqualFold(op.Shape.Method, method) && op.Shape.URITemplate == uriTemplate {
			return op, true
		}
	}
	return types.Operation{}, false
}

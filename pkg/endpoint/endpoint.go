// Package endpoint is the runtime base for generated REST API-client
// endpoints. A generated type fixes one operation's Shape (method, URI
// template, route parameters, parameter whitelist) and embeds an *Endpoint,
// which validates and normalizes params, bodies and form data and resolves
// the final URI for a transport layer.
//
// An Endpoint is single-use and not safe for concurrent mutation: build one
// per in-flight request.
//
//	type GetPet struct{ *endpoint.Endpoint }
//
//	func NewGetPet() *GetPet {
//		return &GetPet{endpoint.New(endpoint.Shape{
//			Method:      http.MethodGet,
//			URITemplate: "/pets/{petId}",
//			RouteParams: []string{"petId"},
//			Whitelist:   []string{"fields", "tags[]"},
//		})}
//	}
package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

// ListMarker marks a whitelist entry whose value is a sequence.
const ListMarker = "[]"

// Shape is the static description of one REST operation.
type Shape struct {
	Method      string   `json:"method" yaml:"method"`
	URITemplate string   `json:"uri_template" yaml:"uri_template"`
	RouteParams []string `json:"route_params,omitempty" yaml:"route_params,omitempty"`
	Whitelist   []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`

	// KeyPrefix is stripped from body and form-data keys. Empty means DefaultKeyPrefix.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`

	SnakeCasedParams   bool `json:"snake_cased_params,omitempty" yaml:"snake_cased_params,omitempty"`
	SnakeCasedBody     bool `json:"snake_cased_body,omitempty" yaml:"snake_cased_body,omitempty"`
	SnakeCasedFormData bool `json:"snake_cased_form_data,omitempty" yaml:"snake_cased_form_data,omitempty"`
}

// Endpoint holds an operation's shape and the request state set on it.
type Endpoint struct {
	method      string
	uriTemplate string
	routeParams []string
	whitelist   []string
	keyPrefix   string

	snakeCasedParams   bool
	snakeCasedBody     bool
	snakeCasedFormData bool

	params   *Values
	body     *Values
	formData *Values
}

// New creates an Endpoint for the given shape.
func New(shape Shape) *Endpoint {
	prefix := shape.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Endpoint{
		method:             shape.Method,
		uriTemplate:        shape.URITemplate,
		routeParams:        append([]string(nil), shape.RouteParams...),
		whitelist:          append([]string(nil), shape.Whitelist...),
		keyPrefix:          prefix,
		snakeCasedParams:   shape.SnakeCasedParams,
		snakeCasedBody:     shape.SnakeCasedBody,
		snakeCasedFormData: shape.SnakeCasedFormData,
		params:             NewValues(),
	}
}

// Shape returns a copy of the endpoint's static shape and current flags.
func (e *Endpoint) Shape() Shape {
	return Shape{
		Method:             e.method,
		URITemplate:        e.uriTemplate,
		RouteParams:        append([]string(nil), e.routeParams...),
		Whitelist:          append([]string(nil), e.whitelist...),
		KeyPrefix:          e.keyPrefix,
		SnakeCasedParams:   e.snakeCasedParams,
		SnakeCasedBody:     e.snakeCasedBody,
		SnakeCasedFormData: e.snakeCasedFormData,
	}
}

// Method returns the HTTP verb.
func (e *Endpoint) Method() string {
	return e.method
}

// URI substitutes every route parameter into the template and strips one
// leading slash. A route parameter that is unset or nil is replaced by the
// empty string; use ResolveURI to treat that as an error.
func (e *Endpoint) URI() string {
	return e.render(func(s string) string { return s })
}

// EscapedURI is like URI but path-escapes every route value, so values
// holding '/', '?', '#' or '%' stay inside their path segment.
func (e *Endpoint) EscapedURI() string {
	return e.render(url.PathEscape)
}

func (e *Endpoint) render(escape func(string) string) string {
	uri := e.uriTemplate
	for _, name := range e.routeParams {
		uri = strings.ReplaceAll(uri, "{"+name+"}", escape(e.routeValue(name)))
	}
	return strings.TrimPrefix(uri, "/")
}

// ResolveURI is like URI but fails with a *RouteError when a route
// parameter is unset or nil.
func (e *Endpoint) ResolveURI() (string, error) {
	var missing []string
	for _, name := range e.routeParams {
		if val, ok := e.params.Get(name); !ok || val == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", &RouteError{Template: e.uriTemplate, Missing: missing}
	}
	return e.URI(), nil
}

func (e *Endpoint) routeValue(name string) string {
	val, ok := e.params.Get(name)
	if !ok || val == nil {
		return ""
	}
	return fmt.Sprint(val)
}

// Params returns the params whose names are whitelisted, without nil
// values, in the order they were set. Route-only params are not included.
func (e *Endpoint) Params() *Values {
	allowed := make(map[string]struct{}, len(e.whitelist))
	for _, name := range e.normalizedWhitelist() {
		allowed[name] = struct{}{}
	}

	out := NewValues()
	e.params.Range(func(key string, val any) bool {
		if _, ok := allowed[key]; ok && val != nil {
			out.Set(key, val)
		}
		return true
	})
	return out
}

// SetParams validates and stores params, replacing any previous params.
// A nil input is a no-op. Unknown names fail with a *ValidationError and
// leave the current params untouched.
func (e *Endpoint) SetParams(in *Values) (*Endpoint, error) {
	if in == nil {
		return e, nil
	}
	if e.snakeCasedParams {
		in = snakeKeys(in)
	}

	allowed := e.AllowedParams()
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}

	var invalid []string
	for _, key := range in.Keys() {
		if _, ok := allowedSet[key]; !ok {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		return e, &ValidationError{Invalid: invalid, Allowed: allowed}
	}

	params := NewValues()
	in.Range(func(key string, val any) bool {
		params.Set(key, unwrap(val))
		return true
	})
	e.params = params
	return e, nil
}

// AllowedParams returns the normalized whitelist followed by the route
// parameter names, without duplicates, in declared order.
func (e *Endpoint) AllowedParams() []string {
	seen := make(map[string]struct{}, len(e.whitelist)+len(e.routeParams))
	out := make([]string, 0, len(e.whitelist)+len(e.routeParams))
	for _, name := range append(e.normalizedWhitelist(), e.routeParams...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// normalizedWhitelist strips the list marker from whitelist entries.
func (e *Endpoint) normalizedWhitelist() []string {
	out := make([]string, len(e.whitelist))
	for i, name := range e.whitelist {
		out[i] = strings.TrimSuffix(name, ListMarker)
	}
	return out
}

// IsListParam reports whether name was whitelisted with the list marker.
func (e *Endpoint) IsListParam(name string) bool {
	for _, entry := range e.whitelist {
		if entry == name+ListMarker {
			return true
		}
	}
	return false
}

// Body returns the normalized body, or nil if none is set.
func (e *Endpoint) Body() *Values {
	return e.body
}

// SetBody normalizes and stores the body. A nil input clears it.
func (e *Endpoint) SetBody(in *Values) *Endpoint {
	if in == nil {
		e.body = nil
		return e
	}
	e.body = normalize(in, e.keyPrefix, e.snakeCasedBody)
	return e
}

// FormData returns the normalized form data, or nil if none is set.
func (e *Endpoint) FormData() *Values {
	return e.formData
}

// SetFormData normalizes and stores form data using the form-data case
// flag. A nil input clears it.
func (e *Endpoint) SetFormData(in *Values) *Endpoint {
	if in == nil {
		e.formData = nil
		return e
	}
	e.formData = normalize(in, e.keyPrefix, e.snakeCasedFormData)
	return e
}

// SetSnakeCasedParams toggles snake_casing of param names in SetParams.
func (e *Endpoint) SetSnakeCasedParams(on bool) *Endpoint {
	e.snakeCasedParams = on
	return e
}

// SetSnakeCasedBody toggles snake_casing of body keys in SetBody.
func (e *Endpoint) SetSnakeCasedBody(on bool) *Endpoint {
	e.snakeCasedBody = on
	return e
}

// SetSnakeCasedFormData toggles snake_casing of form-data keys in SetFormData.
func (e *Endpoint) SetSnakeCasedFormData(on bool) *Endpoint {
	e.snakeCasedFormData = on
	return e
}

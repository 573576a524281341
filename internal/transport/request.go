package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"routekit/internal/config"
	"routekit/pkg/endpoint"
)

// RequestIDHeader carries a fresh UUID on every request.
const RequestIDHeader = "X-Request-Id"

// ListStyle controls how sequence values are written to a query string.
type ListStyle string

const (
	// ListBrackets writes list params as tags[]=a&tags[]=b.
	ListBrackets ListStyle = "brackets"
	// ListRepeat writes list params as tags=a&tags=b.
	ListRepeat ListStyle = "repeat"
)

// Request is the view of an endpoint a transport needs.
// *endpoint.Endpoint implements it.
type Request interface {
	Method() string
	URI() string
	EscapedURI() string
	ResolveURI() (string, error)
	Params() *endpoint.Values
	IsListParam(name string) bool
	Body() *endpoint.Values
	FormData() *endpoint.Values
}

// RequestBuilder turns endpoints into HTTP requests against one base URL.
type RequestBuilder struct {
	baseURL   string
	auth      Authenticator
	headers   map[string]string
	listStyle ListStyle
	strict    bool
}

// NewRequestBuilder creates a request builder from the target and endpoint settings.
func NewRequestBuilder(target config.TargetConfig, ep config.EndpointConfig) (*RequestBuilder, error) {
	auth, err := NewAuthenticator(target.Auth)
	if err != nil {
		return nil, err
	}
	style := ListStyle(ep.ListStyle)
	if style == "" {
		style = ListBrackets
	}
	return &RequestBuilder{
		baseURL:   strings.TrimRight(target.BaseURL, "/"),
		auth:      auth,
		headers:   target.Headers,
		listStyle: style,
		strict:    ep.StrictRoutes,
	}, nil
}

// Build creates the HTTP request for r. Extra headers override the
// configured ones; authentication is applied last.
func (rb *RequestBuilder) Build(ctx context.Context, r Request, extra map[string]string) (*http.Request, error) {
	if rb.strict {
		if _, err := r.ResolveURI(); err != nil {
			return nil, err
		}
	}

	target := rb.baseURL + "/" + r.EscapedURI()
	if query := EncodeQuery(r.Params(), r.IsListParam, rb.listStyle); query != "" {
		target += "?" + query
	}

	body, contentType, err := encodePayload(r)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, r.Method(), target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range rb.headers {
		req.Header.Set(key, value)
	}
	for key, value := range extra {
		req.Header.Set(key, value)
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	rb.auth.Apply(req)
	return req, nil
}

func encodePayload(r Request) (io.Reader, string, error) {
	if body := r.Body(); body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
	if form := r.FormData(); form != nil {
		return strings.NewReader(EncodeForm(form)), "application/x-www-form-urlencoded", nil
	}
	return nil, "", nil
}

// EncodeQuery writes params as a query string in their stored order.
// Sequences expand to one pair per element; isList decides which names get
// the [] suffix under ListBrackets. Nested Values use name[key] pairs.
func EncodeQuery(params *endpoint.Values, isList func(string) bool, style ListStyle) string {
	var pairs []string
	params.Range(func(key string, val any) bool {
		name := key
		if style == ListBrackets && isList != nil && isList(key) {
			name += endpoint.ListMarker
		}
		pairs = appendPairs(pairs, name, val)
		return true
	})
	return strings.Join(pairs, "&")
}

// EncodeForm writes form data as application/x-www-form-urlencoded in key order.
func EncodeForm(form *endpoint.Values) string {
	var pairs []string
	form.Range(func(key string, val any) bool {
		pairs = appendPairs(pairs, key, val)
		return true
	})
	return strings.Join(pairs, "&")
}

func appendPairs(pairs []string, name string, val any) []string {
	switch v := val.(type) {
	case nil:
		return pairs
	case *endpoint.Values:
		v.Range(func(key string, inner any) bool {
			pairs = appendPairs(pairs, name+"["+key+"]", inner)
			return true
		})
		return pairs
	case map[string]any:
		return appendPairs(pairs, name, endpoint.FromMap(v))
	case []byte:
		return append(pairs, escape(name)+"="+escape(string(v)))
	}

	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			pairs = appendPairs(pairs, name, rv.Index(i).Interface())
		}
		return pairs
	}
	return append(pairs, escape(name)+"="+escape(fmt.Sprint(val)))
}

func escape(s string) string {
	return url.QueryEscape(s)
}

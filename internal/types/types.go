package types

import (
	"strings"

	"routekit/pkg/endpoint"
)

// BodyEncoding tells the transport how to send an operation's payload
type BodyEncoding string

const (
	BodyNone BodyEncoding = "none"
	BodyJSON BodyEncoding = "json"
	BodyForm BodyEncoding = "form"
)

// Operation represents one API operation with the shape its endpoint is built from
type Operation struct {
	ID           string
	Summary      string
	Shape        endpoint.Shape
	BodyEncoding BodyEncoding
	Parameters   []Parameter
	BodySchema   interface{}
}

// Key returns the "METHOD /path" form used to index fixtures
func (o Operation) Key() string {
	return EndpointKey(o.Shape.Method, o.Shape.URITemplate)
}

// NewEndpoint creates a fresh endpoint for this operation
func (o Operation) NewEndpoint() *endpoint.Endpoint {
	return endpoint.New(o.Shape)
}

// EndpointKey formats a method and URI template as a fixture key
func EndpointKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// ParseEndpointKey splits a fixture key into method and path
func ParseEndpointKey(key string) (string, string, bool) {
	parts := strings.SplitN(key, " ", 2)
	if len(parts) != 2 {
		return "", key, false
	}
	return parts[0], parts[1], true
}

// Parameter represents an API parameter
type Parameter struct {
	Name     string
	In       string
	Required bool
	List     bool
	Schema   interface{}
}

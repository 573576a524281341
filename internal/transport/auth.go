package transport

import (
	"fmt"
	"net/http"
	"strings"

	"routekit/internal/config"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request) {}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// HeaderAuth implements custom header authentication.
type HeaderAuth struct {
	Header string
	Token  string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request) {
	req.Header.Set(a.Header, a.Token)
}

// QueryAuth implements API key as query parameter authentication.
type QueryAuth struct {
	Param string
	Token string
}

// Apply implements the Authenticator interface for QueryAuth.
// The key is appended so the endpoint's parameter order is kept.
func (a *QueryAuth) Apply(req *http.Request) {
	if req.URL == nil {
		return
	}
	pair := escape(a.Param) + "=" + escape(a.Token)
	if req.URL.RawQuery == "" {
		req.URL.RawQuery = pair
		return
	}
	req.URL.RawQuery += "&" + pair
}

// NewAuthenticator returns the authenticator described by cfg.
// A missing token disables authentication.
func NewAuthenticator(cfg config.AuthConfig) (Authenticator, error) {
	kind := strings.ToLower(cfg.Type)
	if cfg.Token == "" || kind == "" || kind == "none" {
		return &NoAuth{}, nil
	}
	switch kind {
	case "bearer":
		return &BearerAuth{Token: cfg.Token}, nil
	case "header":
		return &HeaderAuth{Header: cfg.Name, Token: cfg.Token}, nil
	case "query":
		return &QueryAuth{Param: cfg.Name, Token: cfg.Token}, nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Type)
	}
}

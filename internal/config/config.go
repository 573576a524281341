package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"routekit/internal/logger"
	"routekit/pkg/endpoint"
)

// Config holds the application configuration
type Config struct {
	Spec      SpecConfig      `koanf:"spec"`
	Target    TargetConfig    `koanf:"target"`
	Endpoint  EndpointConfig  `koanf:"endpoint"`
	Run       RunConfig       `koanf:"run"`
	Fixtures  FixturesConfig  `koanf:"fixtures"`
	Reporting ReportingConfig `koanf:"reporting"`
	Log       logger.Config   `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Database  DatabaseConfig  `koanf:"database"`
}

// SpecConfig points at the OpenAPI document: a file path, a document URL,
// or a base URL that is probed for well-known document paths
type SpecConfig struct {
	Source string `koanf:"source"`
}

// TargetConfig describes the API requests are sent to
type TargetConfig struct {
	BaseURL string            `koanf:"base_url"`
	Auth    AuthConfig        `koanf:"auth"`
	Headers map[string]string `koanf:"headers"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// Type is none, bearer, header or query
	Type  string `koanf:"type"`
	Token string `koanf:"token"`
	// Name is the header or query parameter carrying the token
	Name string `koanf:"name"`
}

// EndpointConfig holds defaults applied to every endpoint shape
type EndpointConfig struct {
	KeyPrefix          string `koanf:"key_prefix"`
	SnakeCasedParams   bool   `koanf:"snake_cased_params"`
	SnakeCasedBody     bool   `koanf:"snake_cased_body"`
	SnakeCasedFormData bool   `koanf:"snake_cased_form_data"`
	// ListStyle is brackets (tags[]=a) or repeat (tags=a)
	ListStyle string `koanf:"list_style"`
	// StrictRoutes fails requests whose route params are unset
	StrictRoutes bool `koanf:"strict_routes"`
}

// RunConfig holds execution configuration
type RunConfig struct {
	Concurrent bool          `koanf:"concurrent"`
	MaxWorkers int           `koanf:"max_workers"`
	Timeout    time.Duration `koanf:"timeout"`
	Retry      RetryConfig   `koanf:"retry"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	Attempts int           `koanf:"attempts"`
	Delay    time.Duration `koanf:"delay"`
}

// FixturesConfig holds fixture file locations
type FixturesConfig struct {
	Dir string `koanf:"dir"`
	// Format of generated templates: json or yaml
	Format string `koanf:"format"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `koanf:"format"`
	OutputDir string   `koanf:"output_dir"`
	Detailed  bool     `koanf:"detailed"`
}

// LLMConfig holds configuration for payload suggestions
type LLMConfig struct {
	// Provider selects the client; only openai is supported
	Provider    string  `koanf:"provider"`
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// DatabaseConfig holds the connection used to fill fixture values
type DatabaseConfig struct {
	// Type is postgres, mysql or sqlserver
	Type     string `koanf:"type"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// New returns a configuration populated with defaults
func New() *Config {
	return &Config{
		Target: TargetConfig{
			Auth:    AuthConfig{Type: "none"},
			Headers: map[string]string{},
		},
		Endpoint: EndpointConfig{
			KeyPrefix: endpoint.DefaultKeyPrefix,
			ListStyle: "brackets",
		},
		Run: RunConfig{
			Concurrent: true,
			MaxWorkers: 5,
			Timeout:    30 * time.Second,
			Retry:      RetryConfig{Attempts: 3, Delay: time.Second},
		},
		Fixtures:  FixturesConfig{Dir: "testdata", Format: "json"},
		Reporting: ReportingConfig{OutputDir: "reports"},
		Log:       logger.Config{Level: "info", Format: "auto", Output: "stderr", Dir: "logs"},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			Temperature: 0.7,
			MaxTokens:   2000,
		},
	}
}

// Shape applies the endpoint defaults to a shape extracted from a document
func (c *Config) Shape(shape endpoint.Shape) endpoint.Shape {
	if shape.KeyPrefix == "" {
		shape.KeyPrefix = c.Endpoint.KeyPrefix
	}
	shape.SnakeCasedParams = shape.SnakeCasedParams || c.Endpoint.SnakeCasedParams
	shape.SnakeCasedBody = shape.SnakeCasedBody || c.Endpoint.SnakeCasedBody
	shape.SnakeCasedFormData = shape.SnakeCasedFormData || c.Endpoint.SnakeCasedFormData
	return shape
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	var errs []error

	if c.Target.BaseURL != "" {
		if u, err := url.Parse(c.Target.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("target.base_url %q is not an absolute URL", c.Target.BaseURL))
		}
	}

	switch strings.ToLower(c.Target.Auth.Type) {
	case "", "none", "bearer":
	case "header", "query":
		if c.Target.Auth.Name == "" {
			errs = append(errs, fmt.Errorf("target.auth.name is required for %s auth", c.Target.Auth.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported auth type %q", c.Target.Auth.Type))
	}

	switch c.Endpoint.ListStyle {
	case "brackets", "repeat":
	default:
		errs = append(errs, fmt.Errorf("unsupported list style %q", c.Endpoint.ListStyle))
	}

	if c.Run.MaxWorkers < 1 {
		errs = append(errs, errors.New("run.max_workers must be at least 1"))
	}
	if c.Run.Retry.Attempts < 1 {
		errs = append(errs, errors.New("run.retry.attempts must be at least 1"))
	}

	return errors.Join(errs...)
}

// Validate checks the settings needed for payload suggestions
func (c LLMConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("llm.api_key is required")
	}
	if c.Model == "" {
		return errors.New("llm.model is required")
	}
	return nil
}

// Validate checks the settings needed to fill fixtures from a database
func (c DatabaseConfig) Validate() error {
	if c.Type == "" || c.Host == "" || c.Port == 0 || c.Name == "" || c.User == "" {
		return errors.New("database type, host, port, name and user are required")
	}
	return nil
}

package testdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"routekit/internal/types"
	"routekit/pkg/endpoint"
)

var (
	// ErrNoFixture is returned when a fixture file has no entry for an operation
	ErrNoFixture = errors.New("no fixture for operation")
	// ErrConflictingPayload is returned when a fixture sets both body and form data
	ErrConflictingPayload = errors.New("fixture sets both body and form_data")
)

// candidateFiles are looked up in order inside the fixtures directory
var candidateFiles = []string{
	"testdata.yaml",
	"testdata.yml",
	"testdata.json",
	"testdata_template.yaml",
	"testdata_template.json",
}

// TestData is the content of a fixture file, keyed by "METHOD /path"
type TestData struct {
	Endpoints map[string]Fixture `json:"endpoints" yaml:"endpoints"`
}

// Fixture holds the request data for one operation. Keys keep the order
// they have in the file.
type Fixture struct {
	Params   *endpoint.Values  `json:"params,omitempty" yaml:"params,omitempty"`
	Body     *endpoint.Values  `json:"body,omitempty" yaml:"body,omitempty"`
	FormData *endpoint.Values  `json:"form_data,omitempty" yaml:"form_data,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Apply sets the fixture's params, body and form data on e. A request
// carries one payload, so a fixture with both body and form data is rejected.
func (f Fixture) Apply(e *endpoint.Endpoint) error {
	if f.Body != nil && f.FormData != nil {
		return ErrConflictingPayload
	}
	if _, err := e.SetParams(f.Params); err != nil {
		return err
	}
	e.SetBody(f.Body)
	e.SetFormData(f.FormData)
	return nil
}

// Loader handles loading test data from files
type Loader struct {
	dir  string
	path string
	data *TestData
}

// NewLoader creates a new test data loader
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Path returns the file the fixtures were loaded from
func (l *Loader) Path() string {
	return l.path
}

// LoadTestData loads the first fixture file found in the directory
func (l *Loader) LoadTestData() (*TestData, error) {
	if l.data != nil {
		return l.data, nil
	}
	for _, name := range candidateFiles {
		path := filepath.Join(l.dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		l.path, l.data = path, data
		return data, nil
	}
	return nil, fmt.Errorf("no test data found in %s (looked for %s)", l.dir, strings.Join(candidateFiles, ", "))
}

// GetTestDataForOperation returns the fixture for op
func (l *Loader) GetTestDataForOperation(op types.Operation) (Fixture, error) {
	data, err := l.LoadTestData()
	if err != nil {
		return Fixture{}, err
	}
	fixture, ok := data.Endpoints[op.Key()]
	if !ok {
		return Fixture{}, fmt.Errorf("%w: %s", ErrNoFixture, op.Key())
	}
	return fixture, nil
}

// ReadFile decodes a fixture file; the format follows the extension
func ReadFile(path string) (*TestData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data TestData
	if isYAML(path) {
		err = yaml.Unmarshal(raw, &data)
	} else {
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse test data %s: %w", path, err)
	}
	if data.Endpoints == nil {
		data.Endpoints = make(map[string]Fixture)
	}
	return &data, nil
}

// WriteFile encodes data to path, creating its directory
func WriteFile(path string, data *TestData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var (
		raw []byte
		err error
	)
	if isYAML(path) {
		raw, err = yaml.Marshal(data)
	} else {
		raw, err = json.MarshalIndent(data, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal test data: %w", err)
	}
	return os.WriteFile(path, raw, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"routekit/internal/config"
	"routekit/internal/executor"
)

// Report represents the test execution report
type Report struct {
	Timestamp time.Time             `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration         `json:"duration" yaml:"duration"`
	Summary   Summary               `json:"summary" yaml:"summary"`
	Results   []executor.TestResult `json:"results" yaml:"results"`
}

// Summary counts results by status
type Summary struct {
	Total   int `json:"total" yaml:"total"`
	Success int `json:"success" yaml:"success"`
	Failure int `json:"failure" yaml:"failure"`
	Error   int `json:"error" yaml:"error"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Passed reports whether no operation failed or errored
func (s Summary) Passed() bool {
	return s.Failure == 0 && s.Error == 0
}

// Summarize counts results by status
func Summarize(results []executor.TestResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case executor.StatusSuccess:
			s.Success++
		case executor.StatusFailure:
			s.Failure++
		case executor.StatusError:
			s.Error++
		case executor.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Reporter handles the generation of test reports
type Reporter struct {
	config config.ReportingConfig
	now    func() time.Time
}

// NewReporter creates a new instance of Reporter
func NewReporter(cfg config.ReportingConfig) *Reporter {
	return &Reporter{config: cfg, now: time.Now}
}

// Build assembles a report. Request and response bodies are dropped unless
// detailed reporting is on.
func (r *Reporter) Build(results []executor.TestResult, elapsed time.Duration) Report {
	out := make([]executor.TestResult, len(results))
	copy(out, results)
	if !r.config.Detailed {
		for i := range out {
			out[i].RequestBody = ""
			out[i].Response = ""
		}
	}
	return Report{
		Timestamp: r.now(),
		Duration:  elapsed,
		Summary:   Summarize(results),
		Results:   out,
	}
}

// GenerateReport writes the report in every configured format and returns
// the paths written
func (r *Reporter) GenerateReport(report Report) ([]string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	var paths []string
	for _, format := range r.config.Format {
		var (
			data []byte
			err  error
			ext  string
		)
		switch strings.ToLower(format) {
		case "json":
			ext = "json"
			data, err = json.MarshalIndent(withErrors(report), "", "  ")
		case "yaml", "yml":
			ext = "yaml"
			data, err = yaml.Marshal(withErrors(report))
		default:
			return paths, fmt.Errorf("unsupported report format %q", format)
		}
		if err != nil {
			return paths, fmt.Errorf("failed to encode %s report: %w", format, err)
		}

		path := filepath.Join(r.config.OutputDir, fmt.Sprintf("report_%s.%s", report.Timestamp.Format("20060102_150405"), ext))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write %s report: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// encodedResult carries the result error as text, which TestResult leaves out
type encodedResult struct {
	executor.TestResult `yaml:",inline"`
	Error               string `json:"error,omitempty" yaml:"error,omitempty"`
}

type encodedReport struct {
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Duration  string          `json:"duration" yaml:"duration"`
	Summary   Summary         `json:"summary" yaml:"summary"`
	Results   []encodedResult `json:"results" yaml:"results"`
}

func withErrors(report Report) encodedReport {
	out := encodedReport{
		Timestamp: report.Timestamp,
		Duration:  report.Duration.String(),
		Summary:   report.Summary,
		Results:   make([]encodedResult, len(report.Results)),
	}
	for i, r := range report.Results {
		out.Results[i] = encodedResult{TestResult: r}
		if r.Error != nil {
			out.Results[i].Error = r.Error.Error()
		}
	}
	return out
}

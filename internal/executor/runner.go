package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"routekit/internal/config"
	"routekit/internal/metrics"
	"routekit/internal/testdata"
	"routekit/internal/transport"
	"routekit/internal/types"
	"routekit/pkg/endpoint"
)

// Status is the outcome of one operation run
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusError   Status = "ERROR"
	StatusSkipped Status = "SKIPPED"
)

// TestResult represents the result of a single test
type TestResult struct {
	Operation   string        `json:"operation" yaml:"operation"`
	Method      string        `json:"method" yaml:"method"`
	Endpoint    string        `json:"endpoint" yaml:"endpoint"`
	URL         string        `json:"url,omitempty" yaml:"url,omitempty"`
	Status      Status        `json:"status" yaml:"status"`
	StatusCode  int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Attempts    int           `json:"attempts" yaml:"attempts"`
	RequestID   string        `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Error       error         `json:"-" yaml:"-"`
	RequestBody string        `json:"request_body,omitempty" yaml:"request_body,omitempty"`
	Response    string        `json:"response,omitempty" yaml:"response,omitempty"`
}

// Job pairs an operation with its fixture. A nil fixture skips the operation.
type Job struct {
	Operation types.Operation
	Fixture   *testdata.Fixture
}

// PlanJobs pairs every operation with its fixture from data
func PlanJobs(ops []types.Operation, data *testdata.TestData) []Job {
	jobs := make([]Job, len(ops))
	for i, op := range ops {
		jobs[i] = Job{Operation: op}
		if data == nil {
			continue
		}
		if fixture, ok := data.Endpoints[op.Key()]; ok {
			jobs[i].Fixture = &fixture
		}
	}
	return jobs
}

// Option configures a TestExecutor
type Option func(*TestExecutor)

// WithMetrics records request metrics on m
func WithMetrics(m *metrics.Manager) Option {
	return func(e *TestExecutor) { e.metrics = m }
}

// WithLogger sets the executor's logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *TestExecutor) { e.log = l }
}

// WithShapeDefaults adjusts every operation shape before its endpoint is built
func WithShapeDefaults(fn func(endpoint.Shape) endpoint.Shape) Option {
	return func(e *TestExecutor) { e.shape = fn }
}

// TestExecutor handles the execution of API tests
type TestExecutor struct {
	config  config.RunConfig
	client  *transport.Client
	metrics *metrics.Manager
	log     zerolog.Logger
	shape   func(endpoint.Shape) endpoint.Shape
}

// NewTestExecutor creates a new test executor
func NewTestExecutor(cfg config.RunConfig, client *transport.Client, opts ...Option) *TestExecutor {
	e := &TestExecutor{
		config: cfg,
		client: client,
		log:    zerolog.Nop(),
		shape:  func(s endpoint.Shape) endpoint.Shape { return s },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunTests executes every job and returns the results in job order
func (e *TestExecutor) RunTests(ctx context.Context, jobs []Job) []TestResult {
	results := make([]TestResult, len(jobs))

	workers := e.config.MaxWorkers
	if !e.config.Concurrent || workers < 1 {
		workers = 1
	}
	// Create a channel to limit concurrent executions
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.runJob(ctx, job)
		}(i, job)
	}

	wg.Wait()
	return results
}

func (e *TestExecutor) runJob(ctx context.Context, job Job) TestResult {
	op := job.Operation
	result := TestResult{
		Operation: op.ID,
		Method:    op.Shape.Method,
		Endpoint:  op.Shape.URITemplate,
	}
	log := e.log.With().Str("operation", op.ID).Logger()

	if job.Fixture == nil {
		result.Status = StatusSkipped
		result.Error = testdata.ErrNoFixture
		log.Debug().Msg("no fixture, skipping")
		return result
	}

	ep := endpoint.New(e.shape(op.Shape))
	if err := job.Fixture.Apply(ep); err != nil {
		reason := "params"
		if errors.Is(err, testdata.ErrConflictingPayload) {
			reason = "payload"
		}
		e.metrics.RecordBuildFailure(op.ID, reason)
		result.Status = StatusError
		result.Error = err
		log.Error().Err(err).Msg("invalid fixture")
		return result
	}

	attempts := e.config.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		resp *transport.Response
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result.Attempts = attempt
		start := time.Now()
		resp, err = e.client.Do(ctx, ep, job.Fixture.Headers)
		e.recordAttempt(op, resp, err, time.Since(start))
		if err == nil || !transport.Retryable(err) || attempt == attempts {
			break
		}

		e.metrics.RecordRetry(op.ID)
		log.Warn().Err(err).Int("attempt", attempt).Msg("retrying request")
		if werr := wait(ctx, e.config.Retry.Delay); werr != nil {
			err = errors.Join(err, werr)
			break
		}
	}

	if resp != nil {
		result.StatusCode = resp.StatusCode
		result.Duration = resp.Duration
		result.RequestID = resp.RequestID
		result.URL = resp.URL
		result.RequestBody = string(resp.RequestBody)
		result.Response = formatBody(resp)
	}

	switch {
	case err == nil:
		result.Status = StatusSuccess
	case errors.Is(err, transport.ErrUnexpectedStatus):
		result.Status = StatusFailure
		result.Error = err
	default:
		result.Status = StatusError
		result.Error = err
	}

	log.Info().
		Str("status", string(result.Status)).
		Int("status_code", result.StatusCode).
		Dur("duration", result.Duration).
		Int("attempts", result.Attempts).
		Msg("request finished")
	return result
}

func (e *TestExecutor) recordAttempt(op types.Operation, resp *transport.Response, err error, elapsed time.Duration) {
	switch {
	case resp != nil && err == nil:
		e.metrics.RecordRequest(op.ID, op.Shape.Method, metrics.OutcomeSuccess, resp.Duration)
	case resp != nil:
		e.metrics.RecordRequest(op.ID, op.Shape.Method, metrics.OutcomeFailure, resp.Duration)
	case errors.Is(err, endpoint.ErrUnresolvedRouteParam):
		e.metrics.RecordBuildFailure(op.ID, "route")
	case errors.Is(err, endpoint.ErrInvalidParameter):
		e.metrics.RecordBuildFailure(op.ID, "params")
	default:
		e.metrics.RecordRequest(op.ID, op.Shape.Method, metrics.OutcomeError, elapsed)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// formatBody pretty prints JSON responses and returns anything else as is
func formatBody(resp *transport.Response) string {
	if !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return string(resp.Body)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Body, "", "  "); err != nil {
		return string(resp.Body)
	}
	return buf.String()
}

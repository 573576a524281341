package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"routekit/internal/executor"
	"routekit/internal/llm"
	"routekit/internal/metrics"
	"routekit/internal/parser"
	"routekit/internal/reporter"
	"routekit/internal/testdata"
	"routekit/internal/testdata/dbsource"
	"routekit/internal/transport"
	"routekit/internal/types"
	"routekit/pkg/endpoint"
)

// operationView is how inspect prints an operation
type operationView struct {
	ID           string             `json:"id" yaml:"id"`
	Key          string             `json:"key" yaml:"key"`
	Summary      string             `json:"summary,omitempty" yaml:"summary,omitempty"`
	BodyEncoding types.BodyEncoding `json:"body_encoding" yaml:"body_encoding"`
	Shape        endpoint.Shape     `json:"shape" yaml:"shape"`
}

func (a *App) newInspectCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the endpoint shape of every operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := a.operations(cmd.Context())
			if err != nil {
				return err
			}
			views := make([]operationView, len(ops))
			for i, op := range ops {
				views[i] = operationView{
					ID:           op.ID,
					Key:          op.Key(),
					Summary:      op.Summary,
					BodyEncoding: op.BodyEncoding,
					Shape:        a.config.Shape(op.Shape),
				}
			}
			return encode(cmd.OutOrStdout(), format, views)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "output format: yaml or json")
	return cmd
}

func (a *App) newTemplateCommand() *cobra.Command {
	var outputDir, format string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate a fixture template for every operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := a.operations(cmd.Context())
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = a.config.Fixtures.Dir
			}
			if format == "" {
				format = a.config.Fixtures.Format
			}

			path, err := testdata.NewGenerator(outputDir, format).GenerateTemplate(ops)
			if err != nil {
				return fmt.Errorf("failed to generate test data template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d operations\n", len(ops))
			fmt.Fprintf(cmd.OutOrStdout(), "Test data template generated in %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output", "", "directory the template is written to (default fixtures.dir)")
	cmd.Flags().StringVar(&format, "format", "", "template format: json or yaml (default fixtures.format)")
	return cmd
}

func (a *App) newRunCommand() *cobra.Command {
	var (
		only        []string
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send every operation that has a fixture and write a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.config
			if cfg.Target.BaseURL == "" {
				return errors.New("no target configured: set target.base_url or pass --base-url")
			}

			ops, err := a.operations(ctx)
			if err != nil {
				return err
			}
			if len(only) > 0 {
				if ops, err = selectOperations(ops, only); err != nil {
					return err
				}
			}

			loader := testdata.NewLoader(cfg.Fixtures.Dir)
			data, err := loader.LoadTestData()
			if err != nil {
				return fmt.Errorf("%w\nGenerate a fixture template first with: routekit template", err)
			}
			a.log.Info().Str("path", loader.Path()).Msg("loaded fixtures")

			builder, err := transport.NewRequestBuilder(cfg.Target, cfg.Endpoint)
			if err != nil {
				return err
			}
			m := metrics.NewManager()
			exec := executor.NewTestExecutor(cfg.Run, transport.New(builder, cfg.Run.Timeout),
				executor.WithMetrics(m),
				executor.WithLogger(a.log.Logger),
				executor.WithShapeDefaults(cfg.Shape),
			)

			start := time.Now()
			results := exec.RunTests(ctx, executor.PlanJobs(ops, data))

			rep := reporter.NewReporter(cfg.Reporting)
			report := rep.Build(results, time.Since(start))
			paths, err := rep.GenerateReport(report)
			if err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}
			if metricsFile != "" {
				if err := m.WriteFile(metricsFile); err != nil {
					return fmt.Errorf("failed to write metrics: %w", err)
				}
			}

			printResults(cmd.OutOrStdout(), results)
			s := report.Summary
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d operations: %d succeeded, %d failed, %d errored, %d skipped\n",
				s.Total, s.Success, s.Failure, s.Error, s.Skipped)
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", p)
			}
			if !s.Passed() {
				return fmt.Errorf("%d of %d operations did not succeed", s.Failure+s.Error, s.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "operation", nil, `run only these operations (ID or "METHOD /path")`)
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	return cmd
}

func (a *App) newFillCommand() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill empty fixture values from the configured database",
		Long: `Fill looks up a value for every null param, body or form-data entry of
the fixture file. The table is named by the last literal segment of the
operation's path and the column by the key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ops, err := a.operations(ctx)
			if err != nil {
				return err
			}
			path, data, err := a.fixtures(input)
			if err != nil {
				return err
			}

			src, err := dbsource.Open(ctx, a.config.Database)
			if err != nil {
				return err
			}
			defer src.Close()

			n, err := dbsource.NewFiller(src, a.log.Logger).FillAll(ctx, ops, data)
			if err != nil {
				return fmt.Errorf("failed to fill fixtures: %w", err)
			}
			if output == "" {
				output = path
			}
			if err := testdata.WriteFile(output, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Filled %d values in %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "fixture file to fill (default: the file run would load)")
	cmd.Flags().StringVar(&output, "output", "", "file to write (default: the input file)")
	return cmd
}

func (a *App) newSuggestCommand() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Ask a language model for realistic bodies and form data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ops, err := a.operations(ctx)
			if err != nil {
				return err
			}
			path, data, err := a.fixtures(input)
			if err != nil {
				return err
			}

			client, err := llm.NewClient(a.config.LLM)
			if err != nil {
				return err
			}
			suggester := llm.NewSuggester(client, a.log.Logger)

			updated := 0
			for _, op := range ops {
				fixture, ok := data.Endpoints[op.Key()]
				if !ok || op.BodyEncoding == types.BodyNone {
					continue
				}
				suggested, err := suggester.SuggestFixture(ctx, op, fixture)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					a.log.Warn().Err(err).Str("operation", op.ID).Msg("keeping fixture")
					continue
				}
				data.Endpoints[op.Key()] = suggested
				updated++
			}

			if output == "" {
				output = path
			}
			if err := testdata.WriteFile(output, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d fixtures in %s\n", updated, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "fixture file to update (default: the file run would load)")
	cmd.Flags().StringVar(&output, "output", "", "file to write (default: the input file)")
	return cmd
}

// fixtures reads path, or the file the loader picks when path is empty
func (a *App) fixtures(path string) (string, *testdata.TestData, error) {
	if path != "" {
		data, err := testdata.ReadFile(path)
		return path, data, err
	}
	loader := testdata.NewLoader(a.config.Fixtures.Dir)
	data, err := loader.LoadTestData()
	if err != nil {
		return "", nil, err
	}
	return loader.Path(), data, nil
}

// selectOperations keeps the operations named by refs, in document order
func selectOperations(ops []types.Operation, refs []string) ([]types.Operation, error) {
	keep := make(map[string]bool, len(refs))
	for _, ref := range refs {
		op, ok := parser.Find(ops, ref)
		if !ok {
			return nil, fmt.Errorf("unknown operation %q", ref)
		}
		keep[op.Key()] = true
	}
	out := make([]types.Operation, 0, len(keep))
	for _, op := range ops {
		if keep[op.Key()] {
			out = append(out, op)
		}
	}
	return out, nil
}

func printResults(w io.Writer, results []executor.TestResult) {
	for _, r := range results {
		line := fmt.Sprintf("%-8s %-7s %s", r.Status, r.Method, r.Endpoint)
		if r.StatusCode != 0 {
			line += fmt.Sprintf(" -> %d (%s)", r.StatusCode, r.Duration.Round(time.Millisecond))
		}
		if r.Error != nil && r.Status != executor.StatusSkipped {
			line += ": " + r.Error.Error()
		}
		fmt.Fprintln(w, line)
	}
}

func encode(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

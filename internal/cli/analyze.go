package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlyoglab/ipcheck/internal/bundle"
	"github.com/dlyoglab/ipcheck/internal/config"
	"github.com/dlyoglab/ipcheck/internal/delivery"
	"github.com/dlyoglab/ipcheck/internal/pipeline"
)

// Analyze flags
var (
	flagProvider string
	flagModel    string
	flagMode     string
	flagMaxUnits int
	flagBudget   time.Duration
	flagFormat   string
	flagOut      string
	flagEmail    bool
	flagNoCache  bool
	flagNoRedact bool
)

func addAnalyzeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "Analysis provider (perplexity, openai, ollama)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagMode, "mode", "", "Chunking mode (auto, per-file, fixed-slice)")
	cmd.Flags().IntVar(&flagMaxUnits, "max-units", 0, "Maximum number of units to analyze")
	cmd.Flags().DurationVar(&flagBudget, "budget", 0, "Total time budget for the run (e.g. 10m)")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Report format (markdown, html, json)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Report file path (default: stdout)")
	cmd.Flags().BoolVar(&flagEmail, "email", false, "Also email the report using the mail settings")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagMode != "" {
		m["chunking.mode"] = flagMode
	}
	if flagMaxUnits > 0 {
		m["chunking.maxUnits"] = strconv.Itoa(flagMaxUnits)
	}
	if flagBudget > 0 {
		m["budget.invocationSeconds"] = strconv.Itoa(max(int(flagBudget.Seconds()), 1))
	}
	if flagFormat != "" {
		m["output.format"] = flagFormat
	}
	return m
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path|s3://bucket/key|dir>",
	Short: "Analyze a bundle and deliver the report",
	Long: "Analyze a zip archive, a text file, an S3 object or a local directory. " +
		"The report is written to stdout or --out, and emailed with --email.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitConfigError
			return nil
		}
		if flagNoRedact {
			cfg.Privacy.RedactSecrets = false
			fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
		}
		if flagNoCache {
			cfg.Cache.Enabled = false
		}

		d, err := buildDeliverer(cmd, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitConfigError
			return nil
		}

		req, err := buildRequest(args[0], cfg.Select)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		p := &pipeline.Pipeline{Config: cfg, Deliverer: d, Logger: logger}
		st := p.Run(ctx, req)
		fmt.Fprintln(os.Stderr, summarize(st))
		exitCode = statusExitCode(st)
		return nil
	},
}

// buildDeliverer writes the report locally and, with --email, also sends it
// over SMTP.
func buildDeliverer(cmd *cobra.Command, cfg config.Config) (delivery.Deliverer, error) {
	var local delivery.Deliverer = delivery.Writer{W: cmd.OutOrStdout(), Format: cfg.Output.Format}
	if flagOut != "" {
		local = delivery.File{Path: flagOut, Format: cfg.Output.Format}
	}
	if !flagEmail {
		return local, nil
	}
	if err := cfg.RequireDelivery(); err != nil {
		return nil, err
	}
	m := cfg.Mail
	mail := delivery.SMTP{Host: m.Host, Port: m.Port, Username: m.User, Password: m.Password, From: m.From, Timeout: time.Minute}
	return delivery.Multi{local, mail}, nil
}

// buildRequest reads a local directory into a bundle; anything else is
// fetched by the pipeline.
func buildRequest(target string, sel config.SelectConfig) (pipeline.Request, error) {
	if strings.HasPrefix(target, "s3://") {
		return pipeline.Request{Location: target}, nil
	}
	info, err := os.Stat(target)
	if err != nil {
		return pipeline.Request{}, err
	}
	if !info.IsDir() {
		return pipeline.Request{Location: target}, nil
	}
	b, err := bundle.FromDir(target, bundle.SelectOptions{
		Include:  sel.Include,
		Exclude:  sel.Exclude,
		MaxFiles: sel.MaxFiles,
	})
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("reading %s: %w", target, err)
	}
	return pipeline.Request{Location: target, Bundle: &b}, nil
}

// statusExitCode maps a pipeline status to a process exit code. An empty
// bundle still produced a report and counts as success.
func statusExitCode(st pipeline.Status) int {
	var cfgErr *pipeline.ConfigurationError
	var empty *pipeline.EmptyInputError
	switch {
	case st.OK():
		return ExitSuccess
	case errors.As(st.Err, &cfgErr):
		return ExitConfigError
	case errors.As(st.Err, &empty) && st.Code < 300:
		return ExitSuccess
	case st.Code >= 500:
		return ExitFailure
	default:
		return ExitRuntimeError
	}
}

func summarize(st pipeline.Status) string {
	line := st.Body
	if st.Outcome != nil && st.Outcome.TotalUnits > 0 {
		line += fmt.Sprintf(" %d of %d unit(s) analyzed", st.Outcome.Processed(), st.Outcome.TotalUnits)
		if st.Outcome.TruncatedForTime {
			line += ", stopped by time budget"
		}
		line += "."
	}
	if st.RunID != "" {
		line += " (run " + st.RunID + ")"
	}
	return line
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	addAnalyzeFlags(analyzeCmd)
}

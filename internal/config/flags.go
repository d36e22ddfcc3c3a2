package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pacefire -r REQUESTS -e ENDPOINT [ENDPOINT...]",
		Short:         "Sends n requests per period to each endpoint",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Pacing flags
	flags.IntP("requests", "r", 0, "Requests per period, sent to each endpoint")
	flags.StringArrayP("endpoints", "e", nil, "Endpoint URL to request (repeatable; trailing arguments are also endpoints)")
	flags.IntP("period", "p", int(DefaultPeriod.Seconds()), "Period in seconds over which --requests are spread")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout (0 disables)")
	flags.Duration("retention", DefaultRetention, "Rolling window width for the requests count")
	flags.Duration("poll-interval", DefaultPollInterval, "How long the scheduler yields between boundary checks")
	flags.Duration("graceful-shutdown", DefaultGracefulShutdown, "Max time to wait for in-flight requests on interrupt (0=default, negative=cancel immediately)")

	// Output flags
	flags.Bool("json-output", false, "Emit one JSON object per completed request")
	flags.Bool("dashboard", false, "Show live terminal dashboard instead of per-request lines")
	flags.Bool("summary", true, "Print a per-endpoint summary table on exit")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String("status-addr", "", "Serve /status, /healthz and /metrics on this address (e.g. :9090)")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")
	flags.Bool("print-config", false, "Print the resolved configuration as YAML and exit")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans (default pacefire)")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file. Positional arguments are treated as endpoints.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("requests") {
		val, err := fs.GetInt("requests")
		if err != nil {
			return err
		}
		cfg.Requests = val
	}

	var endpoints []string
	if fs.Changed("endpoints") {
		val, err := fs.GetStringArray("endpoints")
		if err != nil {
			return err
		}
		endpoints = append(endpoints, val...)
	}
	endpoints = append(endpoints, fs.Args()...)
	if len(endpoints) > 0 {
		cfg.Endpoints = normalizeEndpoints(endpoints)
	}

	if fs.Changed("period") {
		val, err := fs.GetInt("period")
		if err != nil {
			return err
		}
		period, err := secondsToDuration(val)
		if err != nil {
			return fmt.Errorf("period: %w", err)
		}
		cfg.Period = period
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("retention") {
		val, err := fs.GetDuration("retention")
		if err != nil {
			return err
		}
		cfg.Retention = val
	}
	if fs.Changed("poll-interval") {
		val, err := fs.GetDuration("poll-interval")
		if err != nil {
			return err
		}
		cfg.PollInterval = val
	}
	if fs.Changed("graceful-shutdown") {
		val, err := fs.GetDuration("graceful-shutdown")
		if err != nil {
			return err
		}
		cfg.GracefulShutdown = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("summary") {
		val, err := fs.GetBool("summary")
		if err != nil {
			return err
		}
		cfg.Summary = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("status-addr") {
		val, err := fs.GetString("status-addr")
		if err != nil {
			return err
		}
		cfg.StatusAddr = strings.TrimSpace(val)
	}
	if fs.Changed("print-config") {
		val, err := fs.GetBool("print-config")
		if err != nil {
			return err
		}
		cfg.PrintConfig = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = val
	}

	return nil
}

func normalizeEndpoints(values []string) []string {
	endpoints := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			endpoints = append(endpoints, trimmed)
		}
	}
	return endpoints
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/torosent/pacefire/internal/logging"
)

const (
	DefaultPeriod           = 60 * time.Second
	DefaultTimeout          = 30 * time.Second
	DefaultRetention        = time.Minute
	DefaultPollInterval     = time.Millisecond
	DefaultGracefulShutdown = 5 * time.Second
	DefaultLogLevel         = "info"
)

// Config is the resolved run configuration. Durations and the pacing target
// are rendered separately by WriteYAML.
type Config struct {
	Requests         int           `mapstructure:"requests" yaml:"-"`
	Endpoints        []string      `mapstructure:"endpoints" yaml:"-"`
	Period           time.Duration `mapstructure:"period" yaml:"-"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"-"`
	Retention        time.Duration `mapstructure:"retention" yaml:"-"`
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"-"`
	GracefulShutdown time.Duration `mapstructure:"graceful_shutdown" yaml:"-"`
	JSONOutput       bool          `mapstructure:"json_output" yaml:"json_output"`
	Dashboard        bool          `mapstructure:"dashboard" yaml:"dashboard"`
	Summary          bool          `mapstructure:"summary" yaml:"summary"`
	LogErrors        bool          `mapstructure:"log_errors" yaml:"log_errors"`
	LogLevel         string        `mapstructure:"log_level" yaml:"log_level"`
	StatusAddr       string        `mapstructure:"status_addr" yaml:"status_addr,omitempty"`
	Tracing          TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	PrintConfig      bool          `mapstructure:"-" yaml:"-"`
	ConfigFile       string        `mapstructure:"-" yaml:"-"`
}

// TracingConfig controls OpenTelemetry export of per-request spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol,omitempty"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name" yaml:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	Propagate   bool    `mapstructure:"propagate" yaml:"propagate"` // inject W3C headers into requests
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context headers are added to requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled() && t.Propagate
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Requests < 1 {
		issues = append(issues, "requests must be >= 1 (use --help for usage information)")
	}
	if c.Period <= 0 {
		issues = append(issues, "period must be > 0")
	}
	if c.Requests > 0 && c.Period > 0 && c.Period < time.Duration(c.Requests) {
		issues = append(issues, "requests per period exceeds one request per nanosecond")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.PollInterval < 0 {
		issues = append(issues, "poll interval must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		issues = append(issues, err.Error())
	}

	endpointIssues := validateEndpoints(c.Endpoints)
	if len(endpointIssues) > 0 {
		issues = append(issues, endpointIssues...)
	}

	tracingIssues := validateTracingConfig(c.Tracing)
	if len(tracingIssues) > 0 {
		issues = append(issues, tracingIssues...)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

// Warnings returns non-fatal notes about the configuration for the caller to
// print before the run starts.
func (c Config) Warnings() []string {
	var warnings []string

	// Security warning for high offered load
	if c.Requests > 0 && c.Period > 0 {
		perSecond := float64(c.Requests) * float64(len(c.Endpoints)) / c.Period.Seconds()
		if perSecond > 1000 {
			warnings = append(warnings, fmt.Sprintf("WARNING: High offered load configured (%.0f requests/s across all endpoints). Ensure you have authorization to test the target systems.", perSecond))
		}
	}
	if c.Retention <= 0 {
		warnings = append(warnings, "WARNING: retention is not positive; rolling request counts will always be 0.")
	}
	return warnings
}

func validateEndpoints(endpoints []string) []string {
	var issues []string
	if len(endpoints) == 0 {
		return []string{"at least one endpoint is required (use --help for usage information)"}
	}
	seen := map[string]int{}
	for idx, raw := range endpoints {
		ep := strings.TrimSpace(raw)
		if ep == "" {
			issues = append(issues, fmt.Sprintf("endpoints[%d]: url is empty", idx))
			continue
		}
		if prev, ok := seen[ep]; ok {
			issues = append(issues, fmt.Sprintf("endpoints[%d]: duplicate of index %d", idx, prev))
			continue
		}
		seen[ep] = idx

		u, err := url.Parse(ep)
		if err != nil {
			issues = append(issues, fmt.Sprintf("endpoints[%d]: %v", idx, err))
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			issues = append(issues, fmt.Sprintf("endpoints[%d]: scheme must be http or https, got %q", idx, u.Scheme))
		}
		if u.Host == "" {
			issues = append(issues, fmt.Sprintf("endpoints[%d]: host is required", idx))
		}
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	ServiceName    string   `yaml:"service_name"`
	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`

	// Upload and analysis configuration
	UploadDir             string        `yaml:"upload_dir"`
	AnalysisTimeout       time.Duration `yaml:"analysis_timeout"`
	MaxConcurrentAnalyses int64         `yaml:"max_concurrent_analyses"`

	// Observability configuration
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ServiceName:           "printquote",
		HTTPAddr:              ":5000",
		AllowedOrigins:        []string{"*"},
		MaxUploadBytes:        100 << 20,
		UploadDir:             "uploads",
		AnalysisTimeout:       30 * time.Second,
		MaxConcurrentAnalyses: 4,
		LogLevel:              "info",
		LogFormat:             "json",
	}
}

// LoadFile overlays the YAML file at path on cfg
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

// Parse builds a Config from defaults, the optional -config YAML file and
// command line flags, in that order of precedence
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("printquote", flag.ContinueOnError)

	// Define flags
	configPath := fs.String("config", "", "Path to a YAML configuration file")
	httpAddr := fs.String("http-addr", "", "HTTP API address")
	uploadDir := fs.String("upload-dir", "", "Directory for temporary uploads")
	origins := fs.String("allowed-origins", "", "Comma-separated list of allowed CORS origins")
	maxUpload := fs.Int64("max-upload-bytes", 0, "Maximum request body size in bytes")
	timeout := fs.Duration("analysis-timeout", 0, "Maximum duration of a single mesh analysis")
	concurrency := fs.Int64("max-concurrent-analyses", 0, "Maximum number of mesh analyses running at once")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, console)")
	jaeger := fs.String("jaeger-endpoint", "", "Jaeger collector endpoint, tracing is disabled when empty")

	// Parse flags
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := LoadFile(cfg, *configPath); err != nil {
			return nil, err
		}
	}

	// Flags override the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTPAddr = *httpAddr
		case "upload-dir":
			cfg.UploadDir = *uploadDir
		case "allowed-origins":
			cfg.AllowedOrigins = splitList(*origins)
		case "max-upload-bytes":
			cfg.MaxUploadBytes = *maxUpload
		case "analysis-timeout":
			cfg.AnalysisTimeout = *timeout
		case "max-concurrent-analyses":
			cfg.MaxConcurrentAnalyses = *concurrency
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "jaeger-endpoint":
			cfg.JaegerEndpoint = *jaeger
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseFlags parses command line flags and returns a Config
func ParseFlags() *Config {
	cfg, err := Parse(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Validate checks required settings
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP address is required")
	}
	if c.UploadDir == "" {
		return errors.New("upload directory is required")
	}
	if c.MaxConcurrentAnalyses <= 0 {
		return errors.New("max concurrent analyses must be positive")
	}
	if c.AnalysisTimeout < 0 {
		return errors.New("analysis timeout cannot be negative")
	}
	if c.MaxUploadBytes < 0 {
		return errors.New("max upload bytes cannot be negative")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return errors.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

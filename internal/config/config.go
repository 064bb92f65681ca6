package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. FILMDW_DATABASE_HOST.
const EnvPrefix = "FILMDW"

// Config represents the complete application configuration
type Config struct {
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
}

// SourceConfig locates the film spreadsheet. Exactly one of Path or SheetsID is used;
// Path wins when both are set.
type SourceConfig struct {
	Path            string `yaml:"path" split_words:"true" validate:"required_without=SheetsID"`
	Sheet           string `yaml:"sheet" split_words:"true"`
	SheetsID        string `yaml:"sheets_id" split_words:"true"`
	SheetsRange     string `yaml:"sheets_range" split_words:"true"`
	CredentialsFile string `yaml:"credentials_file" split_words:"true"`
}

// DatabaseConfig contains warehouse connection parameters
type DatabaseConfig struct {
	Driver         string        `yaml:"driver" split_words:"true" validate:"oneof=postgres sqlite"`
	DSN            string        `yaml:"dsn" split_words:"true"`
	Host           string        `yaml:"host" split_words:"true"`
	Port           int           `yaml:"port" split_words:"true" validate:"min=0,max=65535"`
	User           string        `yaml:"user" split_words:"true"`
	Password       string        `yaml:"password" split_words:"true"`
	Name           string        `yaml:"name" split_words:"true" validate:"required_without=DSN"`
	SSLMode        string        `yaml:"sslmode" split_words:"true"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" split_words:"true"`
	BatchSize      int           `yaml:"batch_size" split_words:"true" validate:"min=1"`
	LogSQL         bool          `yaml:"log_sql" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" split_words:"true" validate:"oneof=json text"`
	Output   string `yaml:"output" split_words:"true" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// TelemetryConfig controls tracing, metrics and the optional status server
type TelemetryConfig struct {
	EnableTracing bool    `yaml:"enable_tracing" split_words:"true"`
	TraceExporter string  `yaml:"trace_exporter" split_words:"true" validate:"oneof=stdout none"`
	EnableMetrics bool    `yaml:"enable_metrics" split_words:"true"`
	SampleRatio   float64 `yaml:"sample_ratio" split_words:"true" validate:"min=0,max=1"`
	StatusAddr    string  `yaml:"status_addr" split_words:"true"`
	Environment   string  `yaml:"environment" split_words:"true"`
}

// ExportConfig controls the optional CSV snapshot of the warehouse
type ExportConfig struct {
	Dir string `yaml:"dir" split_words:"true"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Sheet: "Films",
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Name:           "MovieDW",
			SSLMode:        "disable",
			ConnectTimeout: 10 * time.Second,
			BatchSize:      500,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/etl.log",
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
			EnableMetrics: true,
			SampleRatio:   1.0,
			Environment:   "development",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path (if
// any, otherwise the first file found in the usual locations), then FILMDW_*
// environment variables, then overrides (command-line flags). Later sources
// override earlier ones; validation runs last.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"filmdw.yaml",
		"configs/filmdw.yaml",
		"../configs/filmdw.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Logging.Output = strings.ToLower(c.Logging.Output)
	c.Telemetry.TraceExporter = strings.ToLower(c.Telemetry.TraceExporter)
	if !c.Telemetry.EnableTracing {
		c.Telemetry.TraceExporter = "none"
	}
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output is %q", c.Logging.Output)
	}
	return nil
}

// ConnectionString returns the driver-specific DSN. An explicit DSN wins.
func (d DatabaseConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == "sqlite" {
		return d.Name
	}

	parts := []string{
		"host=" + d.Host,
		fmt.Sprintf("port=%d", d.Port),
		"user=" + d.User,
		"dbname=" + d.Name,
	}
	if d.Password != "" {
		parts = append(parts, "password="+d.Password)
	}
	if d.SSLMode != "" {
		parts = append(parts, "sslmode="+d.SSLMode)
	}
	if d.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(d.ConnectTimeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

// Redacted returns the connection target without credentials, for logging.
func (d DatabaseConfig) Redacted() string {
	if d.Driver == "sqlite" {
		return d.ConnectionString()
	}
	if d.DSN != "" {
		return d.Driver + " (dsn)"
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", d.Driver, d.User, d.Host, d.Port, d.Name)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/sendgrid-analytics/internal/datanorm"
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig                  `yaml:"server"`
	Pipeline     PipelineConfig                `yaml:"pipeline"`
	Benchmarks   map[string]map[string]float64 `yaml:"benchmarks"`
	Presentation PresentationConfig            `yaml:"presentation"`
	Export       ExportConfig                  `yaml:"export"`
	Sessions     SessionConfig                 `yaml:"sessions"`
	Cache        CacheConfig                   `yaml:"cache"`
	Storage      StorageConfig                 `yaml:"storage"`
	Logging      LoggingConfig                 `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port" validate:"min=1,max=65535"`
	Host                string   `yaml:"host"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds" validate:"min=0"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds" validate:"min=0"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// ReadTimeout returns the read timeout as a duration
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// PipelineConfig controls validation and normalization of uploads.
type PipelineConfig struct {
	ValidEvents      []string          `yaml:"valid_events"`
	RequiredColumns  []string          `yaml:"required_columns"`
	ColumnAliases    map[string]string `yaml:"column_aliases"` // raw header -> canonical column
	TimestampLayouts []string          `yaml:"timestamp_layouts"`
	InheritSubject   *bool             `yaml:"inherit_subject"`
	RequireProcessed bool              `yaml:"require_processed"`
}

// PresentationConfig holds chart colors and display labels per event type.
type PresentationConfig struct {
	Colors map[string]string `yaml:"colors"`
	Labels map[string]string `yaml:"labels"`
}

// ExportConfig holds report export settings
type ExportConfig struct {
	FilenamePrefix string `yaml:"filename_prefix"`
	SheetName      string `yaml:"sheet_name"`
	DefaultFormat  string `yaml:"default_format" validate:"omitempty,oneof=xlsx csv"`
	Archive        bool   `yaml:"archive"` // copy generated reports to storage.s3_bucket
}

// SessionConfig holds upload session settings
type SessionConfig struct {
	TTLMinutes           int   `yaml:"ttl_minutes" validate:"min=1"`
	SweepIntervalSeconds int   `yaml:"sweep_interval_seconds" validate:"min=1"`
	MaxUploadMB          int64 `yaml:"max_upload_mb" validate:"min=1"`
}

// TTL returns the idle session lifetime as a duration
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// SweepInterval returns the eviction interval as a duration
func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c SessionConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// CacheConfig holds result cache settings. An empty RedisURL keeps the cache
// in process.
type CacheConfig struct {
	RedisURL   string `yaml:"redis_url"`
	TTLMinutes int    `yaml:"ttl_minutes" validate:"min=1"`
}

// TTL returns the cache entry lifetime as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// StorageConfig holds report archive configuration
type StorageConfig struct {
	S3Bucket        string `yaml:"s3_bucket"`
	S3Prefix        string `yaml:"s3_prefix"`
	AWSRegion       string `yaml:"aws_region"`
	AWSProfile      string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level" validate:"oneof=debug info warn warning error"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// RedactsPII reports whether recipient addresses are masked in logs.
func (c LoggingConfig) RedactsPII() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 60
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 60
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if len(cfg.Pipeline.ValidEvents) == 0 {
		for _, et := range domain.DefaultEventVocabulary() {
			cfg.Pipeline.ValidEvents = append(cfg.Pipeline.ValidEvents, string(et))
		}
	}
	if len(cfg.Pipeline.RequiredColumns) == 0 {
		for _, f := range datanorm.DefaultRequiredColumns() {
			cfg.Pipeline.RequiredColumns = append(cfg.Pipeline.RequiredColumns, string(f))
		}
	}
	if len(cfg.Pipeline.TimestampLayouts) == 0 {
		cfg.Pipeline.TimestampLayouts = datanorm.DefaultTimestampLayouts()
	}
	if cfg.Pipeline.InheritSubject == nil {
		inherit := true
		cfg.Pipeline.InheritSubject = &inherit
	}

	// Benchmarks are written in percent
	if len(cfg.Benchmarks) == 0 {
		cfg.Benchmarks = map[string]map[string]float64{
			string(domain.MetricDeliveryRate): {"excellent": 95, "good": 90},
			string(domain.MetricOpenRate):     {"excellent": 25, "good": 15},
			string(domain.MetricBounceRate):   {"excellent": 2, "good": 5},
		}
	}

	if cfg.Presentation.Colors == nil {
		cfg.Presentation.Colors = map[string]string{
			"processed": "#3498db",
			"delivered": "#2ecc71",
			"open":      "#f39c12",
			"bounce":    "#e74c3c",
		}
	}
	if cfg.Presentation.Labels == nil {
		cfg.Presentation.Labels = map[string]string{}
	}

	if cfg.Export.FilenamePrefix == "" {
		cfg.Export.FilenamePrefix = "sendgrid_email_rates"
	}
	if cfg.Export.SheetName == "" {
		cfg.Export.SheetName = "Email_Analytics"
	}
	if cfg.Export.DefaultFormat == "" {
		cfg.Export.DefaultFormat = "xlsx"
	}

	if cfg.Sessions.TTLMinutes == 0 {
		cfg.Sessions.TTLMinutes = 60
	}
	if cfg.Sessions.SweepIntervalSeconds == 0 {
		cfg.Sessions.SweepIntervalSeconds = 300
	}
	if cfg.Sessions.MaxUploadMB == 0 {
		cfg.Sessions.MaxUploadMB = 50
	}

	if cfg.Cache.TTLMinutes == 0 {
		cfg.Cache.TTLMinutes = 30
	}

	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Storage.S3Prefix == "" {
		cfg.Storage.S3Prefix = "reports/"
	}

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks field ranges and that the pipeline and benchmark sections
// can be turned into pipeline settings.
func (cfg *Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.PipelineOptions(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.DomainBenchmarks(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}

	// Storage overrides
	if v := os.Getenv("REPORTS_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretAccessKey = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

// PipelineOptions builds the normalizer settings. Column aliases from the
// file are added on top of the built-in ones.
func (cfg *Config) PipelineOptions() (datanorm.Options, error) {
	opts := datanorm.DefaultOptions()
	p := cfg.Pipeline

	known := make(map[domain.EventType]bool)
	for _, et := range domain.DefaultEventVocabulary() {
		known[et] = true
	}
	opts.Vocabulary = nil
	for _, e := range p.ValidEvents {
		et := domain.EventType(strings.ToLower(strings.TrimSpace(e)))
		if !known[et] {
			return opts, fmt.Errorf("pipeline.valid_events: %q is not a counted event", e)
		}
		opts.Vocabulary = append(opts.Vocabulary, et)
	}

	fields := make(map[datanorm.CanonicalField]bool)
	for _, f := range datanorm.DefaultColumnAliases() {
		fields[f] = true
	}

	opts.RequiredColumns = nil
	for _, c := range p.RequiredColumns {
		f := datanorm.CanonicalField(datanorm.CleanColumnName(c))
		if !fields[f] {
			return opts, fmt.Errorf("pipeline.required_columns: unknown column %q", c)
		}
		opts.RequiredColumns = append(opts.RequiredColumns, f)
	}

	for raw, canonical := range p.ColumnAliases {
		f := datanorm.CanonicalField(datanorm.CleanColumnName(canonical))
		if !fields[f] {
			return opts, fmt.Errorf("pipeline.column_aliases: %q maps to unknown column %q", raw, canonical)
		}
		opts.ColumnAliases[datanorm.CleanColumnName(raw)] = f
	}

	if len(p.TimestampLayouts) > 0 {
		opts.TimestampLayouts = p.TimestampLayouts
	}
	if p.InheritSubject != nil {
		opts.InheritSubject = *p.InheritSubject
	}
	opts.RequireProcessed = p.RequireProcessed
	return opts, nil
}

// tierAliases maps accepted tier names to ratings. "acceptable" is the
// older name for the middle tier.
var tierAliases = map[string]domain.Rating{
	"excellent":  domain.RatingExcellent,
	"good":       domain.RatingGood,
	"acceptable": domain.RatingGood,
}

// DomainBenchmarks converts the percent thresholds of the benchmarks section
// into fractions. "acceptable" is another name for good, so a metric may
// carry one of the two but not both.
func (cfg *Config) DomainBenchmarks() (domain.Benchmarks, error) {
	known := make(map[domain.Metric]bool)
	for _, m := range domain.RatedMetrics() {
		known[m] = true
	}

	b := make(domain.Benchmarks, len(cfg.Benchmarks))
	for metric, tiers := range cfg.Benchmarks {
		m := domain.Metric(strings.ToLower(metric))
		if !known[m] {
			return nil, fmt.Errorf("benchmarks: unknown metric %q", metric)
		}
		b[m] = make(map[domain.Rating]float64, len(tiers))
		named := make(map[domain.Rating]string, len(tiers))
		for tier, pct := range tiers {
			r, ok := tierAliases[strings.ToLower(tier)]
			if !ok {
				return nil, fmt.Errorf("benchmarks.%s: unknown tier %q", metric, tier)
			}
			if prev, dup := named[r]; dup {
				first, second := prev, tier
				if second < first {
					first, second = second, first
				}
				return nil, fmt.Errorf("benchmarks.%s: tiers %q and %q both set %s", metric, first, second, r)
			}
			named[r] = tier
			if pct < 0 || pct > 100 {
				return nil, fmt.Errorf("benchmarks.%s.%s: %v is not a percentage", metric, tier, pct)
			}
			b[m][r] = pct / 100
		}
	}
	return b, nil
}

// EventLabels returns the configured display labels keyed by event type.
func (cfg *Config) EventLabels() map[domain.EventType]string {
	out := make(map[domain.EventType]string, len(cfg.Presentation.Labels))
	for k, v := range cfg.Presentation.Labels {
		out[domain.EventType(strings.ToLower(k))] = v
	}
	return out
}

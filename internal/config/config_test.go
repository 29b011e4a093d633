package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-analytics/internal/datanorm"
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

pipeline:
  valid_events: ["processed", "delivered"]
  column_aliases:
    "Event Date": processed
  inherit_subject: false
  require_processed: true

benchmarks:
  delivery_rate:
    excellent: 98
    acceptable: 92

export:
  filename_prefix: "acme"
  default_format: "csv"

sessions:
  ttl_minutes: 15
  max_upload_mb: 5

logging:
  level: "DEBUG"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "acme", cfg.Export.FilenamePrefix)
	assert.Equal(t, "csv", cfg.Export.DefaultFormat)
	assert.Equal(t, int64(5<<20), cfg.Sessions.MaxUploadBytes())
	assert.Equal(t, 15*60, int(cfg.Sessions.TTL().Seconds()))
	assert.Equal(t, "debug", cfg.Logging.Level)

	opts, err := cfg.PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventProcessed, domain.EventDelivered}, opts.Vocabulary)
	assert.Equal(t, datanorm.FieldProcessed, opts.ColumnAliases["event date"])
	assert.Equal(t, datanorm.FieldProcessed, opts.ColumnAliases["timestamp"])
	assert.False(t, opts.InheritSubject)
	assert.True(t, opts.RequireProcessed)

	b, err := cfg.DomainBenchmarks()
	require.NoError(t, err)
	assert.InDelta(t, 0.98, b[domain.MetricDeliveryRate][domain.RatingExcellent], 1e-12)
	assert.InDelta(t, 0.92, b[domain.MetricDeliveryRate][domain.RatingGood], 1e-12)
	_, hasOpen := b[domain.MetricOpenRate]
	assert.False(t, hasOpen)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  host: example\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sendgrid_email_rates", cfg.Export.FilenamePrefix)
	assert.Equal(t, "Email_Analytics", cfg.Export.SheetName)
	assert.Equal(t, "xlsx", cfg.Export.DefaultFormat)
	assert.Equal(t, 60, cfg.Sessions.TTLMinutes)
	assert.Equal(t, 30, cfg.Cache.TTLMinutes)
	assert.Equal(t, "us-west-2", cfg.Storage.AWSRegion)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.RedactsPII())
	assert.Equal(t, "#3498db", cfg.Presentation.Colors["processed"])

	opts, err := cfg.PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, datanorm.DefaultOptions(), opts)

	b, err := cfg.DomainBenchmarks()
	require.NoError(t, err)
	for _, m := range domain.RatedMetrics() {
		for tier, want := range domain.DefaultBenchmarks()[m] {
			assert.InDelta(t, want, b[m][tier], 1e-12, "%s/%s", m, tier)
		}
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"unknown event", "pipeline:\n  valid_events: [click]\n"},
		{"unknown required column", "pipeline:\n  required_columns: [campaign]\n"},
		{"alias to unknown column", "pipeline:\n  column_aliases:\n    foo: bar\n"},
		{"unknown metric", "benchmarks:\n  click_rate:\n    good: 5\n"},
		{"unknown tier", "benchmarks:\n  open_rate:\n    stellar: 40\n"},
		{"threshold not a percentage", "benchmarks:\n  open_rate:\n    good: 150\n"},
		{"good and acceptable together", "benchmarks:\n  bounce_rate:\n    good: 3\n    acceptable: 5\n"},
		{"bad export format", "export:\n  default_format: pdf\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestDomainBenchmarksRejectsAliasClash(t *testing.T) {
	cfg := Default()
	cfg.Benchmarks = map[string]map[string]float64{
		"bounce_rate": {"excellent": 2, "good": 3, "acceptable": 5},
	}

	_, err := cfg.DomainBenchmarks()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tiers "acceptable" and "good" both set good`)

	delete(cfg.Benchmarks["bounce_rate"], "good")
	b, err := cfg.DomainBenchmarks()
	require.NoError(t, err)
	assert.InDelta(t, 0.05, b[domain.MetricBounceRate][domain.RatingGood], 1e-12)
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
cache:
  redis_url: "redis://file:6379"
storage:
  s3_bucket: "file-bucket"
`)

	t.Setenv("REDIS_URL", "redis://env:6379")
	t.Setenv("REPORTS_S3_BUCKET", "env-bucket")
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "redis://env:6379", cfg.Cache.RedisURL)
	assert.Equal(t, "env-bucket", cfg.Storage.S3Bucket)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "eu-west-1", cfg.Storage.AWSRegion)
}

func TestLoadFromEnvBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")

	_, err := LoadFromEnv(writeConfig(t, "server:\n  host: x\n"))
	assert.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestSampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Opened", cfg.EventLabels()[domain.EventOpen])
	opts, err := cfg.PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, datanorm.FieldRecipient, opts.ColumnAliases["email address"])
}

func TestGetAWSProfile(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("AWS_PROFILE_OVERRIDE", "")
	c := StorageConfig{AWSProfile: "reports"}
	assert.Equal(t, "reports", c.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", c.GetAWSProfile())
}

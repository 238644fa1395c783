package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pulsewatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://localhost/pulse
analysis:
  batchSize: 10
  itemDelay: 250ms
scheduler:
  timezone: Mars/Olympus_Mons
kafka:
  brokers: [localhost:9092]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/pulse" {
		t.Fatalf("database not loaded: %+v", cfg.Database)
	}
	if cfg.Analysis.BatchSize != 10 || cfg.Analysis.ItemDelay != 250*time.Millisecond {
		t.Fatalf("analysis not loaded: %+v", cfg.Analysis)
	}
	if cfg.Analysis.ProgressRetention != 30*time.Second {
		t.Fatalf("default retention lost: %v", cfg.Analysis.ProgressRetention)
	}
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("timezone = %s", cfg.Scheduler.Location())
	}
	if !cfg.Kafka.Enabled() || cfg.Kafka.Topic != "pulsewatch.candidates" {
		t.Fatalf("kafka not enabled: %+v", cfg.Kafka)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadEnvOverridesWin(t *testing.T) {
	path := writeConfig(t, "chatgpt:\n  model: from-file\n")
	t.Setenv("OPENAI_MODEL", "from-env")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChatGPT.Model != "from-env" {
		t.Fatalf("model = %s", cfg.ChatGPT.Model)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("addr = %s", cfg.HTTP.Addr)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Database.Driver = "mysql"
	cfg.Classifier.Provider = "oracle"
	cfg.Analysis.BatchSize = 51
	cfg.RateLimit.Backend = "redis"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"database.driver", "classifier.provider", "analysis.batchSize", "redis.addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

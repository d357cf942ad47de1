package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/autopilot"
	"github.com/jonathan/apply-agent/internal/remote"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"export_dir": "out",
		"service": {"url": "http://tailor.local:5001", "tailor_timeout": "90s", "retries": 2},
		"autopilot": {"max_steps": 6, "step_settle": 900, "tailoring": "blocking"},
		"log": {"verbose": true}
	}`

	cfg, err := LoadConfig(writeFile(t, "config.json", content))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "out", cfg.ExportDir)
	assert.Equal(t, "http://tailor.local:5001", cfg.Service.URL)
	assert.Equal(t, 90*time.Second, cfg.Service.TailorTimeout.Std())
	require.NotNil(t, cfg.Service.Retries)
	assert.Equal(t, 2, *cfg.Service.Retries)
	assert.Equal(t, 6, cfg.Autopilot.MaxSteps)
	require.NotNil(t, cfg.Autopilot.StepSettle)
	assert.Equal(t, 900*time.Millisecond, cfg.Autopilot.StepSettle.Std())
	assert.Equal(t, "blocking", cfg.Autopilot.Tailoring)
	assert.True(t, cfg.Log.Verbose)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	content := `
service:
  url: http://tailor.local:5001
  review_timeout: 2m
tailoring:
  extra_review_rounds: 2
  instructions: Emphasise Go
autopilot:
  after_next: 3s
  after_review: 1500
storage:
  sync_enabled: true
`
	for _, name := range []string{"config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadConfig(writeFile(t, name, content))
			require.NoError(t, err)

			assert.Equal(t, 2*time.Minute, cfg.Service.ReviewTimeout.Std())
			assert.Equal(t, 2, cfg.Tailoring.ExtraReviewRounds)
			assert.Equal(t, "Emphasise Go", cfg.Tailoring.Instructions)
			assert.Equal(t, 3*time.Second, cfg.Autopilot.AfterNext.Std())
			assert.Equal(t, 1500*time.Millisecond, cfg.Autopilot.AfterReview.Std())
			assert.True(t, cfg.Storage.SyncEnabled)
		})
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config.json", `{ invalid json }`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config.yaml", "autopilot:\n  step_settle: soon\n"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "config.toml", "x = 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file extension")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, autopilot.DefaultTimings(), cfg.AutopilotTimings())
	assert.Equal(t, autopilot.DefaultMaxSteps, cfg.Autopilot.MaxSteps)
	assert.Equal(t, remote.DefaultTailorTimeout, cfg.Service.TailorTimeout.Std())
	assert.Equal(t, 50, cfg.Storage.HistoryLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "max steps above ceiling", mutate: func(c *Config) { c.Autopilot.MaxSteps = 11 }, want: "autopilot.max_steps"},
		{name: "negative review rounds", mutate: func(c *Config) { c.Tailoring.ExtraReviewRounds = -1 }, want: "tailoring.extra_review_rounds"},
		{name: "unknown tailoring mode", mutate: func(c *Config) { c.Autopilot.Tailoring = "eager" }, want: "oneof"},
		{name: "bad service url", mutate: func(c *Config) { c.Service.URL = "not a url" }, want: "service.url"},
		{name: "negative wait", mutate: func(c *Config) { c.Autopilot.StepSettle = durationPtr(-1) }, want: "autopilot.step_settle"},
		{name: "too many retries", mutate: func(c *Config) { c.Service.Retries = intPtr(9) }, want: "service.retries"},
		{name: "bad server addr", mutate: func(c *Config) { c.Server.Addr = "nowhere" }, want: "server.addr"},
		{name: "missing resume file", mutate: func(c *Config) { c.ResumePath = "/nonexistent/resume.txt" }, want: "resume file not found"},
		{name: "missing page script", mutate: func(c *Config) { c.Autopilot.ScriptPath = "/nonexistent/engine.js" }, want: "page script not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config error")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		Service:   ServiceConfig{URL: "http://other:9000"},
		Autopilot: AutopilotConfig{MaxSteps: 4},
	}

	merged := partial.MergeWithDefaults(Defaults())

	// Custom values should be preserved
	assert.Equal(t, "http://other:9000", merged.Service.URL)
	assert.Equal(t, 4, merged.Autopilot.MaxSteps)

	// Default values should fill in empty fields
	assert.Equal(t, remote.DefaultReviewTimeout, merged.Service.ReviewTimeout.Std())
	assert.Equal(t, "background", merged.Autopilot.Tailoring)
	assert.Equal(t, DefaultServerAddr, merged.Server.Addr)
	assert.Equal(t, DefaultExportDir, merged.ExportDir)
}

func TestLoad_ZeroIsASetting(t *testing.T) {
	content := `{
		"service": {"retries": 0},
		"autopilot": {"pre_apply_settle": 0, "step_settle": "0s", "after_next": 0, "after_review": 0}
	}`

	cfg, err := Load(writeFile(t, "config.json", content))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.RemoteOptions().Retries)
	assert.Equal(t, autopilot.Timings{}, cfg.AutopilotTimings())

	// Absent values still take the defaults.
	cfg, err = Load(writeFile(t, "config.json", `{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.RemoteOptions().Retries)
	assert.Equal(t, autopilot.DefaultTimings(), cfg.AutopilotTimings())
}

func TestMergeWithDefaults_KeepsExplicitZero(t *testing.T) {
	partial := Config{
		Service:   ServiceConfig{Retries: intPtr(0)},
		Autopilot: AutopilotConfig{AfterNext: durationPtr(0)},
	}

	merged := partial.MergeWithDefaults(Defaults())

	require.NotNil(t, merged.Service.Retries)
	assert.Equal(t, 0, *merged.Service.Retries)
	require.NotNil(t, merged.Autopilot.AfterNext)
	assert.Zero(t, merged.Autopilot.AfterNext.Std())
	require.NotNil(t, merged.Autopilot.StepSettle)
	assert.Equal(t, autopilot.DefaultTimings().StepSettle, merged.Autopilot.StepSettle.Std())

	// The merged copy does not share pointers with the defaults.
	defaults := Defaults()
	var empty Config
	merged = empty.MergeWithDefaults(defaults)
	*merged.Service.Retries = 3
	assert.Equal(t, 1, *defaults.Service.Retries)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{ExportDir: "mine"}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "mine", merged.ExportDir)
	assert.Zero(t, merged.Autopilot.MaxSteps)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("APPLY_SERVICE_URL", "http://env:5001")
	t.Setenv("APPLY_SERVICE_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://localhost/apply")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("APPLY_LOG_FILE", "/tmp/apply.log")
	t.Setenv("APPLY_SYNC_ENABLED", "true")
	t.Setenv("APPLY_MAX_STEPS", "not-a-number")

	cfg := Defaults()
	cfg.ApplyEnv()

	assert.Equal(t, "http://env:5001", cfg.Service.URL)
	assert.Equal(t, "s3cret", cfg.Service.Secret)
	assert.Equal(t, "postgres://localhost/apply", cfg.Storage.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Storage.RedisURL)
	assert.Equal(t, "/tmp/apply.log", cfg.Log.File)
	assert.True(t, cfg.Storage.SyncEnabled)
	assert.Equal(t, autopilot.DefaultMaxSteps, cfg.Autopilot.MaxSteps, "unparsable values keep the current setting")
}

func TestLoad(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	})

	t.Run("invalid after merge", func(t *testing.T) {
		_, err := Load(writeFile(t, "config.json", `{"autopilot": {"max_steps": 40}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_steps")
	})
}

func TestOptionAccessors(t *testing.T) {
	cfg := Defaults()
	cfg.Autopilot.Tailoring = "disabled"
	cfg.Autopilot.StepSettle = durationPtr(500 * time.Millisecond)
	cfg.Tailoring.ExtraReviewRounds = 2
	cfg.Tailoring.Instructions = "keep it short"
	cfg.Service.URL = "http://svc:1"

	ap, err := cfg.AutopilotOptions()
	require.NoError(t, err)
	assert.Equal(t, autopilot.TailoringDisabled, ap.TailoringMode)
	assert.Equal(t, 500*time.Millisecond, ap.Timings.StepSettle)
	assert.Equal(t, "keep it short", ap.Instructions)

	ro := cfg.RemoteOptions()
	assert.Equal(t, "http://svc:1", ro.BaseURL)
	assert.Equal(t, remote.DefaultHealthTimeout, ro.HealthTimeout)
	assert.Equal(t, 1, ro.Retries)

	to := cfg.TailoringOptions()
	assert.Equal(t, 2, to.ExtraReviewRounds)
	assert.Equal(t, 2, to.ReviewIterations)
	assert.Equal(t, 6, to.ReviewerMaxPasses)
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	d := Duration(2500 * time.Millisecond)
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"2.5s"`, string(data))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, d, back)

	assert.Error(t, back.UnmarshalJSON([]byte(`true`)))
}

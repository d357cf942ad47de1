// Package config provides configuration loading and validation for the CLI and local API.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/apply-agent/internal/autopilot"
	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/storage"
	"github.com/jonathan/apply-agent/internal/tailoring"
)

// Config is loaded from a JSON or YAML file. Missing values use Defaults.
type Config struct {
	// Paths
	ResumePath string `json:"resume_path,omitempty" yaml:"resume_path,omitempty"` // Master resume text file
	ExportDir  string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`   // Where downloads are written

	Service   ServiceConfig   `json:"service" yaml:"service"`
	Tailoring TailoringConfig `json:"tailoring" yaml:"tailoring"`
	Autopilot AutopilotConfig `json:"autopilot" yaml:"autopilot"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

// ServiceConfig describes the remote tailoring service.
type ServiceConfig struct {
	URL           string   `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	Secret        string   `json:"secret,omitempty" yaml:"secret,omitempty"` // HS256 shared secret, optional
	TailorTimeout Duration `json:"tailor_timeout,omitempty" yaml:"tailor_timeout,omitempty" validate:"gte=0"`
	ReviewTimeout Duration `json:"review_timeout,omitempty" yaml:"review_timeout,omitempty" validate:"gte=0"`
	HealthTimeout Duration `json:"health_timeout,omitempty" yaml:"health_timeout,omitempty" validate:"gte=0"`
	FieldsTimeout Duration `json:"fields_timeout,omitempty" yaml:"fields_timeout,omitempty" validate:"gte=0"`
	Retries       *int     `json:"retries,omitempty" yaml:"retries,omitempty" validate:"omitempty,gte=0,lte=3"` // 0 disables retries
}

// TailoringConfig controls the convergence loop.
type TailoringConfig struct {
	ReviewIterations  int    `json:"review_iterations,omitempty" yaml:"review_iterations,omitempty" validate:"gte=0,lte=10"` // 0 uses the default
	ReviewerMaxPasses int    `json:"reviewer_max_passes,omitempty" yaml:"reviewer_max_passes,omitempty" validate:"gte=0,lte=20"`
	ExtraReviewRounds int    `json:"extra_review_rounds,omitempty" yaml:"extra_review_rounds,omitempty" validate:"gte=0,lte=5"`
	Instructions      string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

// AutopilotConfig controls the step engine and the browser it drives.
type AutopilotConfig struct {
	MaxSteps       int       `json:"max_steps,omitempty" yaml:"max_steps,omitempty" validate:"gte=0,lte=10"`
	Tailoring      string    `json:"tailoring,omitempty" yaml:"tailoring,omitempty" validate:"omitempty,oneof=disabled background blocking"`
	PreApplySettle *Duration `json:"pre_apply_settle,omitempty" yaml:"pre_apply_settle,omitempty" validate:"omitempty,gte=0"`
	StepSettle     *Duration `json:"step_settle,omitempty" yaml:"step_settle,omitempty" validate:"omitempty,gte=0"`
	AfterNext      *Duration `json:"after_next,omitempty" yaml:"after_next,omitempty" validate:"omitempty,gte=0"`
	AfterReview    *Duration `json:"after_review,omitempty" yaml:"after_review,omitempty" validate:"omitempty,gte=0"`
	PageTimeout    Duration  `json:"page_timeout,omitempty" yaml:"page_timeout,omitempty" validate:"gte=0"`
	Headless       bool      `json:"headless,omitempty" yaml:"headless,omitempty"`
	ChromePath     string    `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	UserDataDir    string    `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	ScriptPath     string    `json:"script_path,omitempty" yaml:"script_path,omitempty"` // Page engine bundle injected on demand
}

// StorageConfig selects the storage tiers. Without a database or Redis URL
// everything is kept in memory.
type StorageConfig struct {
	DatabaseURL  string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	RedisURL     string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	RedisPrefix  string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
	MaxItemBytes int    `json:"max_item_bytes,omitempty" yaml:"max_item_bytes,omitempty" validate:"gte=0"`
	HistoryLimit int    `json:"history_limit,omitempty" yaml:"history_limit,omitempty" validate:"gte=0,lte=1000"`
	SyncEnabled  bool   `json:"sync_enabled,omitempty" yaml:"sync_enabled,omitempty"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Verbose bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	JSON    bool   `json:"json,omitempty" yaml:"json,omitempty"`
}

// ServerConfig controls the local HTTP API.
type ServerConfig struct {
	Addr   string `json:"addr,omitempty" yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"` // Enables bearer auth when set
}

// Default values not owned by another package.
const (
	DefaultServerAddr   = "127.0.0.1:8787"
	DefaultExportDir    = "exports"
	DefaultRedisPrefix  = "apply-agent:"
	DefaultMaxItemBytes = 5 << 20
)

// Defaults returns the documented defaults for every tunable.
func Defaults() Config {
	t := autopilot.DefaultTimings()
	return Config{
		ExportDir: DefaultExportDir,
		Service: ServiceConfig{
			URL:           remote.DefaultBaseURL,
			TailorTimeout: Duration(remote.DefaultTailorTimeout),
			ReviewTimeout: Duration(remote.DefaultReviewTimeout),
			HealthTimeout: Duration(remote.DefaultHealthTimeout),
			FieldsTimeout: Duration(remote.DefaultFieldsTimeout),
			Retries:       intPtr(1),
		},
		Tailoring: TailoringConfig{
			ReviewIterations:  tailoring.DefaultReviewIterations,
			ReviewerMaxPasses: tailoring.DefaultReviewerMaxPasses,
		},
		Autopilot: AutopilotConfig{
			MaxSteps:       autopilot.DefaultMaxSteps,
			Tailoring:      string(autopilot.TailoringBackground),
			PreApplySettle: durationPtr(t.PreApplySettle),
			StepSettle:     durationPtr(t.StepSettle),
			AfterNext:      durationPtr(t.AfterNext),
			AfterReview:    durationPtr(t.AfterReview),
			PageTimeout:    Duration(30 * time.Second),
		},
		Storage: StorageConfig{
			RedisPrefix:  DefaultRedisPrefix,
			MaxItemBytes: DefaultMaxItemBytes,
			HistoryLimit: storage.DefaultHistoryLimit,
		},
		Server: ServerConfig{Addr: DefaultServerAddr},
	}
}

// LoadConfig loads configuration from a JSON or YAML file, picked by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}

	return &cfg, nil
}

// Load reads the file at path (if any), fills defaults and applies environment
// overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	merged := cfg.MergeWithDefaults(Defaults())
	merged.ApplyEnv()
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' validation (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.ResumePath != "" {
		if _, err := os.Stat(c.ResumePath); os.IsNotExist(err) {
			return fmt.Errorf("config error: resume file not found: %s", c.ResumePath)
		}
	}
	if c.Autopilot.ScriptPath != "" {
		if _, err := os.Stat(c.Autopilot.ScriptPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: page script not found: %s", c.Autopilot.ScriptPath)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
// Fields where zero is a real setting (retries, settle waits) are pointers and
// are only filled when absent.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	mergeString(&result.ResumePath, defaults.ResumePath)
	mergeString(&result.ExportDir, defaults.ExportDir)

	s, ds := &result.Service, defaults.Service
	mergeString(&s.URL, ds.URL)
	mergeString(&s.Secret, ds.Secret)
	mergeDuration(&s.TailorTimeout, ds.TailorTimeout)
	mergeDuration(&s.ReviewTimeout, ds.ReviewTimeout)
	mergeDuration(&s.HealthTimeout, ds.HealthTimeout)
	mergeDuration(&s.FieldsTimeout, ds.FieldsTimeout)
	mergePtr(&s.Retries, ds.Retries)

	t, dt := &result.Tailoring, defaults.Tailoring
	mergeInt(&t.ReviewIterations, dt.ReviewIterations)
	mergeInt(&t.ReviewerMaxPasses, dt.ReviewerMaxPasses)
	mergeInt(&t.ExtraReviewRounds, dt.ExtraReviewRounds)
	mergeString(&t.Instructions, dt.Instructions)

	a, da := &result.Autopilot, defaults.Autopilot
	mergeInt(&a.MaxSteps, da.MaxSteps)
	mergeString(&a.Tailoring, da.Tailoring)
	mergePtr(&a.PreApplySettle, da.PreApplySettle)
	mergePtr(&a.StepSettle, da.StepSettle)
	mergePtr(&a.AfterNext, da.AfterNext)
	mergePtr(&a.AfterReview, da.AfterReview)
	mergeDuration(&a.PageTimeout, da.PageTimeout)
	mergeString(&a.ChromePath, da.ChromePath)
	mergeString(&a.UserDataDir, da.UserDataDir)
	mergeString(&a.ScriptPath, da.ScriptPath)

	st, dst := &result.Storage, defaults.Storage
	mergeString(&st.DatabaseURL, dst.DatabaseURL)
	mergeString(&st.RedisURL, dst.RedisURL)
	mergeString(&st.RedisPrefix, dst.RedisPrefix)
	mergeInt(&st.MaxItemBytes, dst.MaxItemBytes)
	mergeInt(&st.HistoryLimit, dst.HistoryLimit)

	mergeString(&result.Log.File, defaults.Log.File)
	mergeString(&result.Server.Addr, defaults.Server.Addr)
	mergeString(&result.Server.Secret, defaults.Server.Secret)

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv overrides values from the environment.
func (c *Config) ApplyEnv() {
	c.Service.URL = getEnvString("APPLY_SERVICE_URL", c.Service.URL)
	c.Service.Secret = getEnvString("APPLY_SERVICE_SECRET", c.Service.Secret)
	c.Storage.DatabaseURL = getEnvString("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.RedisURL = getEnvString("REDIS_URL", c.Storage.RedisURL)
	c.Storage.SyncEnabled = getEnvBool("APPLY_SYNC_ENABLED", c.Storage.SyncEnabled)
	c.Log.File = getEnvString("APPLY_LOG_FILE", c.Log.File)
	c.Server.Secret = getEnvString("APPLY_API_SECRET", c.Server.Secret)
	c.Autopilot.MaxSteps = getEnvInt("APPLY_MAX_STEPS", c.Autopilot.MaxSteps)
	c.Autopilot.ChromePath = getEnvString("CHROME_PATH", c.Autopilot.ChromePath)
}

// AutopilotTimings returns the configured settle waits. Unset waits use the defaults.
func (c *Config) AutopilotTimings() autopilot.Timings {
	t := autopilot.DefaultTimings()
	setDuration(&t.PreApplySettle, c.Autopilot.PreApplySettle)
	setDuration(&t.StepSettle, c.Autopilot.StepSettle)
	setDuration(&t.AfterNext, c.Autopilot.AfterNext)
	setDuration(&t.AfterReview, c.Autopilot.AfterReview)
	return t
}

// AutopilotOptions returns engine options; callers add callbacks and collaborators.
func (c *Config) AutopilotOptions() (autopilot.Options, error) {
	mode, err := autopilot.ParseTailoringMode(c.Autopilot.Tailoring)
	if err != nil {
		return autopilot.Options{}, err
	}
	opts := autopilot.DefaultOptions()
	opts.MaxSteps = c.Autopilot.MaxSteps
	opts.Timings = c.AutopilotTimings()
	opts.TailoringMode = mode
	opts.Instructions = c.Tailoring.Instructions
	return opts, nil
}

// RemoteOptions returns the tailoring service client options.
func (c *Config) RemoteOptions() *remote.Options {
	opts := remote.DefaultOptions()
	opts.BaseURL = c.Service.URL
	opts.TailorTimeout = c.Service.TailorTimeout.Std()
	opts.ReviewTimeout = c.Service.ReviewTimeout.Std()
	opts.HealthTimeout = c.Service.HealthTimeout.Std()
	opts.FieldsTimeout = c.Service.FieldsTimeout.Std()
	if c.Service.Retries != nil {
		opts.Retries = *c.Service.Retries
	}
	return opts
}

// TailoringOptions returns the convergence loop options.
func (c *Config) TailoringOptions() tailoring.Options {
	opts := tailoring.DefaultOptions()
	if c.Tailoring.ReviewIterations > 0 {
		opts.ReviewIterations = c.Tailoring.ReviewIterations
	}
	if c.Tailoring.ReviewerMaxPasses > 0 {
		opts.ReviewerMaxPasses = c.Tailoring.ReviewerMaxPasses
	}
	opts.ExtraReviewRounds = c.Tailoring.ExtraReviewRounds
	return opts
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func mergeInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func mergeDuration(dst *Duration, def Duration) {
	if *dst == 0 {
		*dst = def
	}
}

func mergePtr[T any](dst **T, def *T) {
	if *dst == nil && def != nil {
		v := *def
		*dst = &v
	}
}

func setDuration(dst *time.Duration, d *Duration) {
	if d != nil {
		*dst = d.Std()
	}
}

func intPtr(v int) *int { return &v }

func durationPtr(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}

// fieldPath turns "Config.autopilot.max_steps" into "autopilot.max_steps".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

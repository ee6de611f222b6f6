// Package config provides convcommit configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Repo: .convcommit.toml (relative to repo root)
//   - Global: XDG config dir, e.g. ~/.config/convcommit/config.toml (see os.UserConfigDir)
//
// Environment variables (override config files when set and non-empty):
//   - REPO_PATH, MODEL, OPENAI_API_KEY, BASE_URL,
//   - VERBOSE (1/true/yes/on = true; anything else = false),
//   - CONVCOMMIT_PROMPT_FILE, CONVCOMMIT_MAX_TOKENS, CONVCOMMIT_TEMPERATURE,
//   - CONVCOMMIT_MAX_BYTES_IN_DIFF (0 = unlimited),
//   - CONVCOMMIT_TIMEOUT (Go duration string or integer seconds; 0 = none),
//   - CONVCOMMIT_EXCLUDE (comma-separated extra exclusion entries).
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"convcommit/cli/internal/erruser"
)

// Config holds all convcommit configuration. It is built once at startup and
// passed explicitly to each component.
type Config struct {
	// RepoPath is the repository location to scan. Set from REPO_PATH or --repository-path only.
	RepoPath   string `toml:"-"`
	PromptFile string `toml:"prompt_file"`
	// Model is the model name; empty or "auto" selects the first model the endpoint lists.
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	// MaxTokens is the completion ceiling sent as max_tokens.
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	// MaxBytesInDiff is the per-file diff budget (0 = unlimited).
	MaxBytesInDiff int `toml:"max_bytes_in_diff"`
	// Timeout bounds each HTTP request (0 = no timeout).
	Timeout time.Duration `toml:"timeout"`
	Verbose bool          `toml:"verbose"`
	// Exclude lists extra paths reported by name only (substring match).
	Exclude []string `toml:"exclude"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	RepoPath       *string
	PromptFile     *string
	Model          *string
	APIKey         *string
	BaseURL        *string
	MaxTokens      *int
	Temperature    *float64
	MaxBytesInDiff *int
	Timeout        *time.Duration
	Verbose        *bool
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, repo config is RepoRoot/.convcommit.toml.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

// RepoConfigName is the per-repository config file name.
const RepoConfigName = ".convcommit.toml"

const (
	_defaultRepoPath       = "."
	_defaultPromptFile     = "instructions_prompt.md"
	_defaultModel          = "gpt-4o-mini"
	_defaultAPIKey         = "no-api-key"
	_defaultBaseURL        = "https://api.openai.com/v1"
	_defaultMaxTokens      = 8192
	_defaultTemperature    = 0
	_defaultMaxBytesInDiff = 1024
	_defaultTimeout        = 0
)

// errIntOverflow is returned when an int64 value does not fit in int.
var errIntOverflow = errors.New("value out of range for int")

func int64ToInt(n int64) (int, error) {
	if n < int64(math.MinInt) || n > int64(math.MaxInt) {
		return 0, errIntOverflow
	}
	return int(n), nil
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		RepoPath:       _defaultRepoPath,
		PromptFile:     _defaultPromptFile,
		Model:          _defaultModel,
		APIKey:         _defaultAPIKey,
		BaseURL:        _defaultBaseURL,
		MaxTokens:      _defaultMaxTokens,
		Temperature:    _defaultTemperature,
		MaxBytesInDiff: _defaultMaxBytesInDiff,
		Timeout:        _defaultTimeout,
	}
}

// GlobalConfigPath returns the default global config path.
func GlobalConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", erruser.New("Could not determine config directory.", err)
	}
	return filepath.Join(dir, "convcommit", "config.toml"), nil
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// Missing config files are ignored. Invalid TOML or invalid values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		p, err := GlobalConfigPath()
		if err != nil {
			return nil, err
		}
		globalPath = p
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.RepoRoot != "" {
		if err := mergeFile(&cfg, filepath.Join(opts.RepoRoot, RepoConfigName)); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	applyOverrides(&cfg, opts.Overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges that flags and overrides can violate.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return erruser.New("max_tokens must be a positive number.", nil)
	}
	if c.MaxBytesInDiff < 0 {
		return erruser.New("max_bytes_in_diff must be 0 (unlimited) or a positive number.", nil)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return erruser.New("temperature must be between 0 and 2.", nil)
	}
	if c.Timeout < 0 {
		return erruser.New("timeout must not be negative.", nil)
	}
	return nil
}

// mergeFile reads path and merges into cfg. Only overwrites fields that are
// present in the file; empty strings keep the previous value.
// Missing file is skipped (no error).
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.New("Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read configuration file.", err)
	}
	var file struct {
		PromptFile     *string  `toml:"prompt_file"`
		Model          *string  `toml:"model"`
		APIKey         *string  `toml:"api_key"`
		BaseURL        *string  `toml:"base_url"`
		MaxTokens      *int64   `toml:"max_tokens"`
		Temperature    *float64 `toml:"temperature"`
		MaxBytesInDiff *int64   `toml:"max_bytes_in_diff"`
		Timeout        *string  `toml:"timeout"`
		Verbose        *bool    `toml:"verbose"`
		Exclude        []string `toml:"exclude"`
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.New(fmt.Sprintf("Invalid configuration in %s.", path), err)
	}
	if file.PromptFile != nil && *file.PromptFile != "" {
		cfg.PromptFile = *file.PromptFile
	}
	if file.Model != nil && *file.Model != "" {
		cfg.Model = *file.Model
	}
	if file.APIKey != nil && *file.APIKey != "" {
		cfg.APIKey = *file.APIKey
	}
	if file.BaseURL != nil && *file.BaseURL != "" {
		cfg.BaseURL = *file.BaseURL
	}
	if file.MaxTokens != nil {
		v, err := int64ToInt(*file.MaxTokens)
		if err != nil || v <= 0 {
			return erruser.New("Configuration max_tokens must be a positive number.", err)
		}
		cfg.MaxTokens = v
	}
	if file.Temperature != nil {
		if *file.Temperature < 0 || *file.Temperature > 2 {
			return erruser.New("Configuration temperature must be between 0 and 2.", nil)
		}
		cfg.Temperature = *file.Temperature
	}
	if file.MaxBytesInDiff != nil {
		v, err := int64ToInt(*file.MaxBytesInDiff)
		if err != nil || v < 0 {
			return erruser.New("Configuration max_bytes_in_diff must be 0 or a positive number.", err)
		}
		cfg.MaxBytesInDiff = v
	}
	if file.Timeout != nil && *file.Timeout != "" {
		d, err := parseDuration(*file.Timeout)
		if err != nil {
			return erruser.New("Configuration timeout is invalid.", err)
		}
		cfg.Timeout = d
	}
	if file.Verbose != nil {
		cfg.Verbose = *file.Verbose
	}
	if len(file.Exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, file.Exclude...)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// env key names for config
const (
	envRepoPath       = "REPO_PATH"
	envModel          = "MODEL"
	envAPIKey         = "OPENAI_API_KEY"
	envBaseURL        = "BASE_URL"
	envVerbose        = "VERBOSE"
	envPromptFile     = "CONVCOMMIT_PROMPT_FILE"
	envMaxTokens      = "CONVCOMMIT_MAX_TOKENS"
	envTemperature    = "CONVCOMMIT_TEMPERATURE"
	envMaxBytesInDiff = "CONVCOMMIT_MAX_BYTES_IN_DIFF"
	envTimeout        = "CONVCOMMIT_TIMEOUT"
	envExclude        = "CONVCOMMIT_EXCLUDE"
)

// RepoPathFromEnv returns REPO_PATH from env if set and non-empty. The CLI
// needs it before Load to locate the repository config file.
func RepoPathFromEnv(env []string) (string, bool) {
	v, ok := envMap(env)[envRepoPath]
	return v, ok && v != ""
}

func envMap(env []string) map[string]string {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		vals[strings.TrimSpace(e[:idx])] = strings.TrimSpace(e[idx+1:])
	}
	return vals
}

func applyEnv(cfg *Config, env []string) error {
	vals := envMap(env)
	if v, ok := vals[envRepoPath]; ok && v != "" {
		cfg.RepoPath = v
	}
	if v, ok := vals[envModel]; ok && v != "" {
		cfg.Model = v
	}
	if v, ok := vals[envAPIKey]; ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := vals[envBaseURL]; ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := vals[envPromptFile]; ok && v != "" {
		cfg.PromptFile = v
	}
	if v, ok := vals[envVerbose]; ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			log.Warn().Str("VERBOSE", v).Msg("unrecognized VERBOSE value; debug logging stays off")
		}
		cfg.Verbose = b
	}
	if v, ok := vals[envMaxTokens]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New("CONVCOMMIT_MAX_TOKENS must be a valid number.", err)
		}
		cfg.MaxTokens, err = int64ToInt(n)
		if err != nil {
			return erruser.New("CONVCOMMIT_MAX_TOKENS value out of range.", err)
		}
	}
	if v, ok := vals[envTemperature]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return erruser.New("CONVCOMMIT_TEMPERATURE must be a valid number.", err)
		}
		cfg.Temperature = f
	}
	if v, ok := vals[envMaxBytesInDiff]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New("CONVCOMMIT_MAX_BYTES_IN_DIFF must be a valid number.", err)
		}
		cfg.MaxBytesInDiff, err = int64ToInt(n)
		if err != nil {
			return erruser.New("CONVCOMMIT_MAX_BYTES_IN_DIFF value out of range.", err)
		}
	}
	if v, ok := vals[envTimeout]; ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return erruser.New("CONVCOMMIT_TIMEOUT must be a duration (e.g. 90s) or seconds.", err)
		}
		cfg.Timeout = d
	}
	if v, ok := vals[envExclude]; ok && v != "" {
		for _, x := range strings.Split(v, ",") {
			if x = strings.TrimSpace(x); x != "" {
				cfg.Exclude = append(cfg.Exclude, x)
			}
		}
	}
	return nil
}

// parseBool parses common boolean env values: 1/true/yes/on = true, 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	if o.RepoPath != nil {
		cfg.RepoPath = *o.RepoPath
	}
	if o.PromptFile != nil {
		cfg.PromptFile = *o.PromptFile
	}
	if o.Model != nil {
		cfg.Model = *o.Model
	}
	if o.APIKey != nil {
		cfg.APIKey = *o.APIKey
	}
	if o.BaseURL != nil {
		cfg.BaseURL = *o.BaseURL
	}
	if o.MaxTokens != nil {
		cfg.MaxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		cfg.Temperature = *o.Temperature
	}
	if o.MaxBytesInDiff != nil {
		cfg.MaxBytesInDiff = *o.MaxBytesInDiff
	}
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.Verbose != nil {
		cfg.Verbose = *o.Verbose
	}
}

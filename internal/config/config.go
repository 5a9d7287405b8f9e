// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/jeranaias/campusgpt-tui/internal/logging"
	"github.com/jeranaias/campusgpt-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete client configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Auth    AuthConfig    `toml:"auth" json:"auth"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	History HistoryConfig `toml:"history" json:"history"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// ServerConfig locates the CampusGPT backend.
type ServerConfig struct {
	BaseURL     string `toml:"base_url" json:"base_url"`
	QueryPath   string `toml:"query_path" json:"query_path"`
	HistoryPath string `toml:"history_path" json:"history_path"`
	SessionPath string `toml:"session_path" json:"session_path"`
	// TimeoutSecs bounds non-streaming requests. Streams are bounded only by
	// cancellation.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// AuthConfig locates the bearer token.
type AuthConfig struct {
	// TokenFile holds the token written by "campusgpt token set".
	TokenFile string `toml:"token_file" json:"token_file"`
	// Token is only ever taken from CAMPUSGPT_TOKEN and is never saved.
	Token string `toml:"-" json:"-"`
}

// ChatConfig controls exchanges.
type ChatConfig struct {
	Streaming      bool `toml:"streaming" json:"streaming"`
	ServerSessions bool `toml:"server_sessions" json:"server_sessions"`
	// MaxMessages caps the conversation length; 0 keeps everything.
	MaxMessages int `toml:"max_messages" json:"max_messages"`
}

// HistoryConfig controls the history synchronizer and its cache.
type HistoryConfig struct {
	CachePath              string `toml:"cache_path" json:"cache_path"`
	Limit                  int    `toml:"limit" json:"limit"`
	ManualRefreshPerMinute int    `toml:"manual_refresh_per_minute" json:"manual_refresh_per_minute"`
}

// UIConfig controls presentation.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme"` // auto, dark, light
	WordWrap int    `toml:"word_wrap" json:"word_wrap"`
	Plain    bool   `toml:"plain" json:"plain"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	Path   string `toml:"path" json:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".campusgpt"
	}
	return &Config{
		Server: ServerConfig{
			BaseURL:     "http://localhost:8000",
			QueryPath:   "/api/query",
			HistoryPath: "/api/student/history",
			SessionPath: "/api/student/chat/session",
			TimeoutSecs: 30,
		},
		Auth: AuthConfig{
			TokenFile: filepath.Join(dir, "token"),
		},
		Chat: ChatConfig{
			Streaming: true,
		},
		History: HistoryConfig{
			CachePath:              filepath.Join(dir, "history.db"),
			Limit:                  50,
			ManualRefreshPerMinute: 6,
		},
		UI: UIConfig{
			Theme:    "auto",
			WordWrap: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Path:   filepath.Join(dir, "campusgpt.log"),
		},
	}
}

// Timeout returns the non-streaming request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSecs) * time.Second
}

// Logging converts the [log] section for logging.Init.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Path:   c.Log.Path,
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory, ~/.campusgpt.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".campusgpt"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// EnvOverrides are the CAMPUSGPT_* variables. Unset variables leave the file
// value alone.
type EnvOverrides struct {
	BaseURL   string `env:"CAMPUSGPT_BASE_URL"`
	Token     string `env:"CAMPUSGPT_TOKEN"`
	TokenFile string `env:"CAMPUSGPT_TOKEN_FILE"`
	Streaming *bool  `env:"CAMPUSGPT_STREAMING"`
	LogLevel  string `env:"CAMPUSGPT_LOG_LEVEL"`
	LogFormat string `env:"CAMPUSGPT_LOG_FORMAT"`
	LogPath   string `env:"CAMPUSGPT_LOG_PATH"`
	Theme     string `env:"CAMPUSGPT_THEME"`
}

// LoadDotEnv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies CAMPUSGPT_* variables on top of c.
func (c *Config) ApplyEnvOverrides() error {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if o.BaseURL != "" {
		c.Server.BaseURL = o.BaseURL
	}
	if o.Token != "" {
		c.Auth.Token = o.Token
	}
	if o.TokenFile != "" {
		c.Auth.TokenFile = o.TokenFile
	}
	if o.Streaming != nil {
		c.Chat.Streaming = *o.Streaming
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
	if o.LogPath != "" {
		c.Log.Path = o.LogPath
	}
	if o.Theme != "" {
		c.UI.Theme = o.Theme
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.campusgpt/config.toml, falling back to config.json and then
// to defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadFromPath reads the file at path, TOML unless it ends in .json.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = decodeJSON(cfg, data)
	} else {
		err = decodeTOML(cfg, data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	fillDefaults(cfg)
	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeTOML(cfg *Config, data []byte) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeJSON(cfg *Config, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}

// fillDefaults replaces zero values that have no meaning of their own.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = d.Server.BaseURL
	}
	if cfg.Server.QueryPath == "" {
		cfg.Server.QueryPath = d.Server.QueryPath
	}
	if cfg.Server.HistoryPath == "" {
		cfg.Server.HistoryPath = d.Server.HistoryPath
	}
	if cfg.Server.SessionPath == "" {
		cfg.Server.SessionPath = d.Server.SessionPath
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = d.Server.TimeoutSecs
	}
	if cfg.Auth.TokenFile == "" {
		cfg.Auth.TokenFile = d.Auth.TokenFile
	}
	if cfg.History.CachePath == "" {
		cfg.History.CachePath = d.History.CachePath
	}
	if cfg.History.Limit == 0 {
		cfg.History.Limit = d.History.Limit
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = d.UI.Theme
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = d.Log.Path
	}
}

// ResolvePaths expands a leading ~ in every path setting.
func (c *Config) ResolvePaths() error {
	for _, p := range []*string{&c.Auth.TokenFile, &c.History.CachePath, &c.Log.Path} {
		expanded, err := expandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ~/.campusgpt/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# campusgpt configuration file\n")
	buf.WriteString("# Environment variables (CAMPUSGPT_*) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Host == "" {
		add("server.base_url", "invalid URL '%s'", c.Server.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.base_url", "scheme must be http or https, got '%s'", u.Scheme)
	}
	for _, p := range []struct{ field, path string }{
		{"server.query_path", c.Server.QueryPath},
		{"server.history_path", c.Server.HistoryPath},
		{"server.session_path", c.Server.SessionPath},
	} {
		if !strings.HasPrefix(p.path, "/") {
			add(p.field, "must start with '/', got '%s'", p.path)
		}
	}
	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 600 {
		add("server.timeout_secs", "must be between 1 and 600, got %d", c.Server.TimeoutSecs)
	}

	if c.Chat.MaxMessages < 0 {
		add("chat.max_messages", "must not be negative, got %d", c.Chat.MaxMessages)
	}

	if c.History.Limit < 1 {
		add("history.limit", "must be positive, got %d", c.History.Limit)
	}
	if c.History.ManualRefreshPerMinute < 0 {
		add("history.manual_refresh_per_minute", "must not be negative, got %d", c.History.ManualRefreshPerMinute)
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative, got %d", c.UI.WordWrap)
	}

	if !logging.ValidLevel(c.Log.Level) {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "invalid format '%s', must be text or json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsValidationError reports whether err carries ValidateErrors.
func IsValidationError(err error) bool {
	var v ValidateErrors
	return errors.As(err, &v)
}

// =============================================================================
// DISPLAY
// =============================================================================

// String renders the config as TOML with the token redacted.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	if c.Auth.Token != "" {
		buf.WriteString("\n# token: [REDACTED] (from CAMPUSGPT_TOKEN)\n")
	}
	return buf.String()
}

// Package config loads runtime settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	LLM         LLMConfig      `yaml:"llm"`
	Fetch       FetchConfig    `yaml:"fetch"`
	Extract     ExtractConfig  `yaml:"extract"`
	Auth        AuthConfig     `yaml:"auth"`
	Analysis    AnalysisConfig `yaml:"analysis"`
	Log         LogConfig      `yaml:"log"`
	LexiconPath string         `yaml:"lexicon_path"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	// URL is a go-sqlite3 data source: a file path, a file: URI or ":memory:".
	URL string `yaml:"url"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"` // openai or ollama
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type FetchConfig struct {
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// ExtractConfig controls main-content extraction from HTML pages.
type ExtractConfig struct {
	StripElements    []string `yaml:"strip_elements"`
	ContentSelectors []string `yaml:"content_selectors"`
}

type AuthConfig struct {
	OwnerOpenID   string        `yaml:"owner_open_id"`
	SessionSecret string        `yaml:"session_secret"`
	CookieName    string        `yaml:"cookie_name"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type AnalysisConfig struct {
	// StrictPersistence fails a request when its record cannot be stored.
	// When false the failure is logged and the result is still returned.
	StrictPersistence bool `yaml:"strict_persistence"`
	Workers           int  `yaml:"workers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxUploadBytes: 10 * 1024 * 1024,
		},
		Database: DatabaseConfig{URL: "bsdetect.db"},
		LLM: LLMConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
		Fetch: FetchConfig{
			UserAgent:    "Mozilla/5.0 (compatible; BullshitDetector/1.0; +https://bsdetect.org)",
			Timeout:      20 * time.Second,
			MaxBodyBytes: 10 * 1024 * 1024,
		},
		Extract: ExtractConfig{
			StripElements: []string{"script", "style", "nav", "header", "footer", "aside", "iframe", "noscript"},
			ContentSelectors: []string{
				"main", "article", `[role="main"]`, ".content", ".main-content", "#content", "#main",
			},
		},
		Auth: AuthConfig{
			CookieName: "bsdetect_session",
			SessionTTL: 365 * 24 * time.Hour,
		},
		Analysis: AnalysisConfig{
			StrictPersistence: true,
			Workers:           4,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from well-known environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.Server.Addr, "BSDETECT_ADDR")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Auth.OwnerOpenID, "OWNER_OPEN_ID")
	setString(&c.Auth.SessionSecret, "SESSION_SECRET")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.BaseURL, "LLM_API_URL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.Log.Level, "LOG_LEVEL")
	if secs := getenvInt("LLM_TIMEOUT_SECONDS", 0); secs > 0 {
		c.LLM.Timeout = time.Duration(secs) * time.Second
	}
	c.Analysis.StrictPersistence = getenvBool("BSDETECT_STRICT_PERSISTENCE", c.Analysis.StrictPersistence)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, errors.New("database.url must be set"))
	}
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of openai, ollama", c.LLM.Provider))
	}
	if c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.base_url must be set"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("fetch.max_body_bytes must be positive"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if len(c.Extract.ContentSelectors) == 0 {
		errs = append(errs, errors.New("extract.content_selectors must not be empty"))
	}
	if c.Analysis.Workers <= 0 {
		errs = append(errs, errors.New("analysis.workers must be positive"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, console", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func getenvInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes" || raw == "on"
}

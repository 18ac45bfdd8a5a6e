package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"language-toolkit/internal/config"
)

// Duration is a time.Duration that reads and writes as "30m", "1h30m" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Config holds application settings.
type Config struct {
	// Server settings
	ServerAddr   string `json:"server_addr"`
	APIToken     string `json:"api_token,omitempty"`
	WorkDir      string `json:"work_dir"`
	MaxUploadMB  int    `json:"max_upload_mb"`
	LogLevel     string `json:"log_level"`
	LogJSON      bool   `json:"log_json"`
	MetricsRoute bool   `json:"metrics_route"`

	// Client settings (used by submit/status/watch)
	ServerURL string `json:"server_url"`

	// Provider credentials
	DeepLKey      string `json:"deepl_key,omitempty"`
	GoogleKey     string `json:"google_key,omitempty"`
	OpenAIKey     string `json:"openai_key,omitempty"`
	ElevenLabsKey string `json:"elevenlabs_key,omitempty"`

	// Provider endpoints; empty selects the public API.
	DeepLEndpoint      string `json:"deepl_endpoint,omitempty"`
	GoogleEndpoint     string `json:"google_endpoint,omitempty"`
	OpenAIEndpoint     string `json:"openai_endpoint,omitempty"`
	ElevenLabsEndpoint string `json:"elevenlabs_endpoint,omitempty"`

	// Routing
	LanguageTablePath string `json:"language_table_path,omitempty"`

	// Task execution
	TaskTimeout   Duration `json:"task_timeout"`
	TaskRetention Duration `json:"task_retention"`
	MaxRetries    int      `json:"max_retries"`
	RetryDelay    Duration `json:"retry_delay"`

	// Speech and conversion
	DefaultVoice  string `json:"default_voice"`
	ConverterPath string `json:"converter_path"`
	FFmpegPath    string `json:"ffmpeg_path"`
}

func DefaultConfig() *Config {
	return &Config{
		ServerAddr:   config.DefaultServerAddr,
		WorkDir:      filepath.Join(os.TempDir(), "language-toolkit"),
		MaxUploadMB:  config.DefaultMaxUpload >> 20,
		LogLevel:     "info",
		MetricsRoute: true,

		ServerURL: "http://" + config.DefaultServerAddr,

		TaskTimeout:   Duration(config.DefaultTaskTimeout),
		TaskRetention: Duration(config.DefaultTaskRetention),
		MaxRetries:    config.DefaultMaxRetries,
		RetryDelay:    Duration(config.DefaultRetryDelayBase),

		DefaultVoice:  config.DefaultElevenLabsVoice,
		ConverterPath: "soffice",
		FFmpegPath:    "ffmpeg",
	}
}

func (c *Config) ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "language-toolkit", "config.json")
}

// LoadConfig reads the config file at path (or the default location when
// path is empty) over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = cfg.ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to path, or the default location when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // holds API keys
}

// LoadFromEnvironment overrides settings from environment variables.
func (c *Config) LoadFromEnvironment() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *Duration, key string) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			}
		}
	}

	setString(&c.ServerAddr, "LT_ADDR")
	setString(&c.APIToken, "LT_API_TOKEN")
	setString(&c.WorkDir, "LT_WORK_DIR")
	setString(&c.LogLevel, "LT_LOG_LEVEL")
	setString(&c.ServerURL, "LT_SERVER_URL")
	setString(&c.LanguageTablePath, "LT_LANGUAGE_TABLE")
	setString(&c.DefaultVoice, "LT_DEFAULT_VOICE")
	setString(&c.ConverterPath, "LT_CONVERTER_PATH")
	setString(&c.FFmpegPath, "LT_FFMPEG_PATH")

	setString(&c.DeepLKey, "DEEPL_API_KEY")
	setString(&c.GoogleKey, "GOOGLE_API_KEY")
	setString(&c.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.ElevenLabsKey, "ELEVENLABS_API_KEY")

	setString(&c.DeepLEndpoint, "DEEPL_API_URL")
	setString(&c.GoogleEndpoint, "GOOGLE_TRANSLATE_URL")
	setString(&c.OpenAIEndpoint, "OPENAI_BASE_URL")
	setString(&c.ElevenLabsEndpoint, "ELEVENLABS_API_URL")

	setDuration(&c.TaskTimeout, "LT_TASK_TIMEOUT")
	setDuration(&c.TaskRetention, "LT_TASK_RETENTION")
	setDuration(&c.RetryDelay, "LT_RETRY_DELAY")

	if v := os.Getenv("LT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("LT_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxUploadMB = n
		}
	}
	if v := os.Getenv("LT_LOG_JSON"); v != "" {
		c.LogJSON, _ = strconv.ParseBool(v)
	}
}

// DeepLBaseURL returns the DeepL endpoint. Free-tier keys end in ":fx" and
// are served from a separate host.
func (c *Config) DeepLBaseURL() string {
	if c.DeepLEndpoint != "" {
		return c.DeepLEndpoint
	}
	if strings.HasSuffix(c.DeepLKey, ":fx") {
		return config.DeepLFreeAPIEndpoint
	}
	return config.DeepLAPIEndpoint
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work directory cannot be empty")
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("task timeout must be positive, got: %s", time.Duration(c.TaskTimeout))
	}
	if c.TaskRetention < 0 {
		return fmt.Errorf("task retention must be non-negative, got: %s", time.Duration(c.TaskRetention))
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got: %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be non-negative, got: %s", time.Duration(c.RetryDelay))
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got: %d", c.MaxUploadMB)
	}
	return nil
}

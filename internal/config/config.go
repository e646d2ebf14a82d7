// Package config loads the hadith_source section of the configuration file,
// overlaid with HADITHFEED_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "HADITHFEED"

	ModeOnline = "online"
	ModeLocal  = "local"

	section = "hadith_source"
)

var DefaultConfig = Config{
	Mode:            ModeOnline,
	Collection:      "mishkat",
	TimeoutSeconds:  10,
	FallbackToLocal: true,
	AIModel:         "gemini-2.0-flash",
	MaxAttempts:     10,
	RequestDelay:    time.Second,
	DatabasePath:    "./data/content.db",
	StatePath:       "./data/hadithfeed.db",
	SunnahURL:       "https://sunnah.com",
	AlHadeesURL:     "https://al-hadees.com",
	OllamaURL:       "http://localhost:11434",
}

type Config struct {
	Mode                 string        `json:"mode"                   mapstructure:"mode"`
	Collection           string        `json:"collection"             mapstructure:"collection"`
	TimeoutSeconds       int           `json:"timeout_seconds"        mapstructure:"timeout_seconds"`
	FallbackToLocal      bool          `json:"fallback_to_local"      mapstructure:"fallback_to_local"`
	AITranslationEnabled bool          `json:"ai_translation_enabled" mapstructure:"ai_translation_enabled"`
	AIModel              string        `json:"ai_model"               mapstructure:"ai_model"`
	ValidateLanguage     bool          `json:"validate_language"      mapstructure:"validate_language"`
	MaxAttempts          int           `json:"max_attempts"           mapstructure:"max_attempts"`
	RequestDelay         time.Duration `json:"request_delay"          mapstructure:"request_delay"`
	DatabasePath         string        `json:"database_path"          mapstructure:"database_path"`
	StatePath            string        `json:"state_path"             mapstructure:"state_path"`
	SunnahURL            string        `json:"sunnah_url"             mapstructure:"sunnah_url"`
	AlHadeesURL          string        `json:"alhadees_url"           mapstructure:"alhadees_url"`
	OllamaURL            string        `json:"ollama_url"             mapstructure:"ollama_url"`
	OpenRouterAPIKey     string        `json:"-"                      mapstructure:"openrouter_api_key"`
	// GeminiAPIKey may hold several comma-separated keys.
	GeminiAPIKey      string `json:"-"                  mapstructure:"gemini_api_key"`
	GoogleCredentials string `json:"google_credentials" mapstructure:"google_credentials"`
}

// Load reads path (or ./config.{json,yaml} when path is empty) and the
// environment. A missing default config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AutomaticEnv()

	setDefaults(v)

	// Provider keys are also read from their conventional names.
	_ = v.BindEnv(section+".gemini_api_key", DefaultEnvPrefix+"_HADITH_SOURCE_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv(section+".openrouter_api_key", DefaultEnvPrefix+"_HADITH_SOURCE_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv(section+".google_credentials", DefaultEnvPrefix+"_HADITH_SOURCE_GOOGLE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	var file struct {
		HadithSource Config `mapstructure:"hadith_source"`
	}
	if err := v.Unmarshal(&file, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := &file.HadithSource
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig
	defaults := map[string]interface{}{
		"mode":                   d.Mode,
		"collection":             d.Collection,
		"timeout_seconds":        d.TimeoutSeconds,
		"fallback_to_local":      d.FallbackToLocal,
		"ai_translation_enabled": d.AITranslationEnabled,
		"ai_model":               d.AIModel,
		"validate_language":      d.ValidateLanguage,
		"max_attempts":           d.MaxAttempts,
		"request_delay":          d.RequestDelay,
		"database_path":          d.DatabasePath,
		"state_path":             d.StatePath,
		"sunnah_url":             d.SunnahURL,
		"alhadees_url":           d.AlHadeesURL,
		"ollama_url":             d.OllamaURL,
		"openrouter_api_key":     "",
		"gemini_api_key":         "",
		"google_credentials":     "",
	}
	for key, value := range defaults {
		v.SetDefault(section+"."+key, value)
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeOnline, ModeLocal:
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeOnline, ModeLocal)
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("collection is required")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.AITranslationEnabled && strings.TrimSpace(c.AIModel) == "" {
		return fmt.Errorf("ai_model is required when ai_translation_enabled is set")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

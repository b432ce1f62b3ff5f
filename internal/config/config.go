// Package config resolves Lumina settings from defaults, an optional config
// file, the environment (including a local .env) and bound CLI flags.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys understood by Load. Each is also readable from the upper-cased
// environment variable of the same name.
const (
	KeyGeminiAPIKey        = "gemini_api_key"
	KeyImageModel          = "image_model"
	KeyChatModel           = "chat_model"
	KeyUseOpenRouter       = "use_openrouter"
	KeyOpenRouterAPIKey    = "openrouter_api_key"
	KeyOpenRouterBaseURL   = "openrouter_base_url"
	KeyOpenRouterModel     = "openrouter_model"
	KeyOpenRouterChatModel = "openrouter_chat_model"
	KeyLogLevel            = "log_level"
	KeyLogFormat           = "log_format"
	KeyAddr                = "addr"
)

const (
	DefaultImageModel          = "gemini-2.5-flash-image"
	DefaultChatModel           = "gemini-3-flash-preview"
	DefaultOpenRouterBaseURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel     = "google/gemini-2.5-flash-image-preview"
	DefaultOpenRouterChatModel = "google/gemini-2.5-flash"
	DefaultAddr                = ":8080"
)

// Config is the resolved runtime configuration.
type Config struct {
	GeminiAPIKey        string
	ImageModel          string
	ChatModel           string
	UseOpenRouter       bool
	OpenRouterAPIKey    string
	OpenRouterBaseURL   string
	OpenRouterModel     string
	OpenRouterChatModel string
	LogLevel            string
	LogFormat           string
	Addr                string
}

// SetDefaults registers default values and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyImageModel, DefaultImageModel)
	v.SetDefault(KeyChatModel, DefaultChatModel)
	v.SetDefault(KeyUseOpenRouter, false)
	v.SetDefault(KeyOpenRouterBaseURL, DefaultOpenRouterBaseURL)
	v.SetDefault(KeyOpenRouterModel, DefaultOpenRouterModel)
	v.SetDefault(KeyOpenRouterChatModel, DefaultOpenRouterChatModel)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyAddr, DefaultAddr)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// ReadFile loads cfgFile, or $HOME/.lumina.yaml when cfgFile is empty. A
// .env in the working directory is loaded first without overriding variables
// that are already set. A missing default config file is not an error.
func ReadFile(v *viper.Viper, cfgFile string) error {
	_ = godotenv.Load()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return v.ReadInConfig()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigName(".lumina")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load snapshots v into a Config. The Gemini key falls back to API_KEY.
func Load(v *viper.Viper) Config {
	key := strings.TrimSpace(v.GetString(KeyGeminiAPIKey))
	if key == "" {
		key = strings.TrimSpace(os.Getenv("API_KEY"))
	}
	return Config{
		GeminiAPIKey:        key,
		ImageModel:          strings.TrimSpace(v.GetString(KeyImageModel)),
		ChatModel:           strings.TrimSpace(v.GetString(KeyChatModel)),
		UseOpenRouter:       v.GetBool(KeyUseOpenRouter),
		OpenRouterAPIKey:    strings.TrimSpace(v.GetString(KeyOpenRouterAPIKey)),
		OpenRouterBaseURL:   strings.TrimRight(strings.TrimSpace(v.GetString(KeyOpenRouterBaseURL)), "/"),
		OpenRouterModel:     strings.TrimSpace(v.GetString(KeyOpenRouterModel)),
		OpenRouterChatModel: strings.TrimSpace(v.GetString(KeyOpenRouterChatModel)),
		LogLevel:            v.GetString(KeyLogLevel),
		LogFormat:           v.GetString(KeyLogFormat),
		Addr:                v.GetString(KeyAddr),
	}
}

// Validate checks that the credential for the selected backend is present.
func (c Config) Validate() error {
	if c.UseOpenRouter {
		if c.OpenRouterAPIKey == "" {
			return errors.New("OPENROUTER_API_KEY is required when USE_OPENROUTER=1")
		}
		return nil
	}
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is not set; get one at https://aistudio.google.com/apikey and export GEMINI_API_KEY before running")
	}
	return nil
}

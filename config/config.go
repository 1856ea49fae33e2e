// Package config loads the settings file and environment overrides that
// wire the application together.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type OllamaConfig struct {
	Host string `toml:"host"`
}

type OpenAIConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type AnthropicConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type SearchConfig struct {
	BraveAPIKey string `toml:"brave_api_key"`
}

type ImageGenConfig struct {
	URL string `toml:"url"`
}

// UserConfig is the on-disk settings.toml shape.
type UserConfig struct {
	DataDirectory string          `toml:"data_directory"`
	Ollama        OllamaConfig    `toml:"ollama"`
	OpenAI        OpenAIConfig    `toml:"openai"`
	Anthropic     AnthropicConfig `toml:"anthropic"`
	Search        SearchConfig    `toml:"search"`
	ImageGen      ImageGenConfig  `toml:"imagegen"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory string

	OllamaHost       string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	AnthropicBaseURL string
	AnthropicAPIKey  string

	BraveAPIKey string
	ImageGenURL string
}

var Debug = false
var DebugLog *log.Logger

// DataDir returns the expanded data directory path.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// DatabasePath returns the chat database location inside the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), "chats.db")
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("OLLMUI_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if host := os.Getenv("OLLMUI_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if key := os.Getenv("OLLMUI_OPENAI_API_KEY"); key != "" {
		c.OpenAIAPIKey = key
	}
	if key := os.Getenv("OLLMUI_ANTHROPIC_API_KEY"); key != "" {
		c.AnthropicAPIKey = key
	}
	if key := os.Getenv("OLLMUI_BRAVE_API_KEY"); key != "" {
		c.BraveAPIKey = key
	}
	if url := os.Getenv("OLLMUI_IMAGEGEN_URL"); url != "" {
		c.ImageGenURL = url
	}
}

func CheckDebug() bool {
	debug := os.Getenv("OLLMUI_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log inside the data directory when
// OLLMUI_DEBUG is set.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: debug output may contain chat content
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (OLLMUI_DEBUG=%s) ===", os.Getenv("OLLMUI_DEBUG"))
}

// Load reads settings.toml (if present), applies environment overrides,
// and ensures the data directory exists.
func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory: "~/.local/share/ollmui",
		OllamaHost:    "http://localhost:11434",
		ImageGenURL:   "http://localhost:8000",
	}

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		var user UserConfig
		if _, err := toml.DecodeFile(settingsPath, &user); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", settingsPath, err)
		}

		if user.DataDirectory != "" {
			cfg.DataDirectory = user.DataDirectory
		}
		if user.Ollama.Host != "" {
			cfg.OllamaHost = user.Ollama.Host
		}
		cfg.OpenAIBaseURL = user.OpenAI.BaseURL
		cfg.OpenAIAPIKey = user.OpenAI.APIKey
		cfg.AnthropicBaseURL = user.Anthropic.BaseURL
		cfg.AnthropicAPIKey = user.Anthropic.APIKey
		cfg.BraveAPIKey = user.Search.BraveAPIKey
		if user.ImageGen.URL != "" {
			cfg.ImageGenURL = user.ImageGen.URL
		}
	}

	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

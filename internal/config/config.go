package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all client configuration
type Config struct {
	Server Server `mapstructure:"server"`
	Chat   Chat   `mapstructure:"chat"`
	Socket Socket `mapstructure:"socket"`
}

// Server holds the API endpoints
type Server struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	SocketURL  string `mapstructure:"socket_url"`
}

// Chat holds sync engine tuning
type Chat struct {
	PageSize      int           `mapstructure:"page_size"`
	TypingTimeout time.Duration `mapstructure:"typing_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
}

// Socket holds connection manager tuning
type Socket struct {
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	ReconnectDelayMax time.Duration `mapstructure:"reconnect_delay_max"`
}

// Load loads configuration from file, falling back to defaults when the
// file is absent
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set defaults
	if cfg.Server.APIBaseURL == "" {
		cfg.Server.APIBaseURL = "http://localhost:5000/api"
	}
	if cfg.Server.SocketURL == "" {
		cfg.Server.SocketURL = "ws://localhost:5000/ws"
	}
	if cfg.Chat.PageSize == 0 {
		cfg.Chat.PageSize = 50
	}
	if cfg.Chat.TypingTimeout == 0 {
		cfg.Chat.TypingTimeout = 1500 * time.Millisecond
	}
	if cfg.Chat.MaxUploadSize == 0 {
		cfg.Chat.MaxUploadSize = 5 << 20
	}
	if cfg.Socket.ReconnectAttempts == 0 {
		cfg.Socket.ReconnectAttempts = 5
	}
	if cfg.Socket.ReconnectDelay == 0 {
		cfg.Socket.ReconnectDelay = time.Second
	}
	if cfg.Socket.ReconnectDelayMax == 0 {
		cfg.Socket.ReconnectDelayMax = 5 * time.Second
	}

	return &cfg, nil
}

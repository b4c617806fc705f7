package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Image     ImageConfig
	Session   SessionConfig
	Breaker   BreakerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT"`
	Host string `envconfig:"HOST"`
}

// BackendConfig holds the AI backend connection settings.
type BackendConfig struct {
	URL         string `envconfig:"BACKEND_URL"`
	ChatModel   string `envconfig:"CHAT_MODEL"`
	VisionModel string `envconfig:"VISION_MODEL"`
	// VisionUpload selects the multipart /vision/upload variant over JSON /vision.
	VisionUpload bool `envconfig:"VISION_UPLOAD"`
	// TLSVerify is off by default: the backend is a private-network peer.
	TLSVerify     bool          `envconfig:"BACKEND_TLS_VERIFY"`
	ChatTimeout   time.Duration `envconfig:"CHAT_TIMEOUT"`
	ImageTimeout  time.Duration `envconfig:"IMAGE_TIMEOUT"`
	VisionTimeout time.Duration `envconfig:"VISION_TIMEOUT"`
	ModelsTimeout time.Duration `envconfig:"MODELS_TIMEOUT"`
}

// ImageConfig holds image generation defaults.
type ImageConfig struct {
	Size           string  `envconfig:"IMAGE_SIZE"`
	Steps          int     `envconfig:"IMAGE_STEPS"`
	CFGScale       float64 `envconfig:"IMAGE_CFG_SCALE"`
	NegativePrompt string  `envconfig:"IMAGE_NEGATIVE_PROMPT"`
	Seed           int64   `envconfig:"IMAGE_SEED"`
	Sampler        string  `envconfig:"IMAGE_SAMPLER"`
}

// SessionConfig holds session store and context window settings.
type SessionConfig struct {
	// TTL of zero keeps sessions until process restart.
	TTL         time.Duration `envconfig:"SESSION_TTL"`
	Window      int           `envconfig:"SESSION_WINDOW"`
	MaxSessions int           `envconfig:"SESSION_MAX"`
	PersistDir  string        `envconfig:"SESSION_PERSIST_DIR"`
	// Inspect mounts GET /sessions/:id. Session IDs are client-supplied,
	// so anyone holding an ID can read that conversation; off by default.
	Inspect bool `envconfig:"SESSION_INSPECT"`
}

// BreakerConfig holds circuit breaker settings for backend calls.
type BreakerConfig struct {
	Enabled  bool          `envconfig:"BREAKER_ENABLED"`
	Failures uint32        `envconfig:"BREAKER_FAILURES"`
	Cooldown time.Duration `envconfig:"BREAKER_COOLDOWN"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL"`
	Development bool   `envconfig:"LOG_DEV"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED"`
}

// Load builds configuration from defaults, the optional settings file
// named by NOVA_CONFIG_FILE, and environment variables, in that order.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnvVar))
}

// LoadFile is Load with an explicit settings file path. An empty path
// skips the file layer.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// Fields carry no default tags, so unset variables leave the layers
	// below untouched.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Backend: BackendConfig{
			URL:           "http://172.17.0.1:8000",
			ChatModel:     "mixtral:8x7b",
			VisionModel:   "llava:latest",
			VisionUpload:  true,
			TLSVerify:     false,
			ChatTimeout:   150 * time.Second,
			ImageTimeout:  150 * time.Second,
			VisionTimeout: 90 * time.Second,
			ModelsTimeout: 10 * time.Second,
		},
		Image: ImageConfig{
			Size:           "512x512",
			Steps:          20,
			CFGScale:       7.0,
			NegativePrompt: "ugly, blurry, low quality, distorted",
			Seed:           -1,
			Sampler:        "Euler a",
		},
		Session: SessionConfig{
			TTL:         time.Hour,
			Window:      10,
			MaxSessions: 10000,
		},
		Breaker: BreakerConfig{
			Enabled:  true,
			Failures: 5,
			Cooldown: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("invalid config: BACKEND_URL must not be empty")
	}
	if c.Backend.ChatTimeout <= 0 || c.Backend.ImageTimeout <= 0 || c.Backend.VisionTimeout <= 0 || c.Backend.ModelsTimeout <= 0 {
		return fmt.Errorf("invalid config: backend timeouts must be positive")
	}
	if _, _, err := ParseSize(c.Image.Size); err != nil {
		return fmt.Errorf("invalid config: IMAGE_SIZE: %w", err)
	}
	if c.Image.Steps <= 0 {
		return fmt.Errorf("invalid config: IMAGE_STEPS must be positive, got %d", c.Image.Steps)
	}
	// Turns come in user/assistant pairs.
	if c.Session.Window <= 0 || c.Session.Window%2 != 0 {
		return fmt.Errorf("invalid config: SESSION_WINDOW must be a positive even number, got %d", c.Session.Window)
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("invalid config: SESSION_TTL must not be negative")
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("invalid config: SESSION_MAX must not be negative")
	}
	return nil
}

// ImageSize returns the configured default width and height.
func (c *Config) ImageSize() (int, int) {
	w, h, err := ParseSize(c.Image.Size)
	if err != nil {
		return 512, 512
	}
	return w, h
}

// ParseSize parses a "WxH" size string such as "512x768".
func ParseSize(size string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(size)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("size %q must have the form WxH", size)
	}

	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("size %q has invalid width: %w", size, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("size %q has invalid height: %w", size, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", size)
	}
	return w, h, nil
}

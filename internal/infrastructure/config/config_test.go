package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Backend config
	assert.Equal(t, "http://172.17.0.1:8000", cfg.Backend.URL)
	assert.Equal(t, "mixtral:8x7b", cfg.Backend.ChatModel)
	assert.Equal(t, "llava:latest", cfg.Backend.VisionModel)
	assert.True(t, cfg.Backend.VisionUpload)
	assert.False(t, cfg.Backend.TLSVerify)
	assert.Equal(t, 150*time.Second, cfg.Backend.ChatTimeout)
	assert.Equal(t, 90*time.Second, cfg.Backend.VisionTimeout)

	// Image config
	w, h := cfg.ImageSize()
	assert.Equal(t, 512, w)
	assert.Equal(t, 512, h)
	assert.Equal(t, 20, cfg.Image.Steps)
	assert.Equal(t, int64(-1), cfg.Image.Seed)

	// Session config
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10, cfg.Session.Window)
	assert.Empty(t, cfg.Session.PersistDir)
	assert.False(t, cfg.Session.Inspect)

	require.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":               "9000",
		"HOST":               "127.0.0.1",
		"BACKEND_URL":        "https://ai.internal:8443",
		"CHAT_MODEL":         "llama3.1:8b",
		"VISION_MODEL":       "llava:13b",
		"VISION_UPLOAD":      "false",
		"CHAT_TIMEOUT":       "3m",
		"IMAGE_SIZE":         "768x512",
		"IMAGE_STEPS":        "30",
		"SESSION_TTL":        "30m",
		"SESSION_WINDOW":     "20",
		"SESSION_INSPECT":    "true",
		"LOG_LEVEL":          "debug",
		"LOG_DEV":            "true",
		"RATE_LIMIT_ENABLED": "false",
		"BREAKER_FAILURES":   "3",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "https://ai.internal:8443", cfg.Backend.URL)
	assert.Equal(t, "llama3.1:8b", cfg.Backend.ChatModel)
	assert.Equal(t, "llava:13b", cfg.Backend.VisionModel)
	assert.False(t, cfg.Backend.VisionUpload)
	assert.Equal(t, 3*time.Minute, cfg.Backend.ChatTimeout)

	w, h := cfg.ImageSize()
	assert.Equal(t, 768, w)
	assert.Equal(t, 512, h)
	assert.Equal(t, 30, cfg.Image.Steps)

	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 20, cfg.Session.Window)
	assert.True(t, cfg.Session.Inspect)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, uint32(3), cfg.Breaker.Failures)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "mixtral:8x7b", cfg.Backend.ChatModel)
	assert.True(t, cfg.Breaker.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"odd window", "SESSION_WINDOW", "7"},
		{"zero window", "SESSION_WINDOW", "0"},
		{"bad size", "IMAGE_SIZE", "big"},
		{"zero steps", "IMAGE_STEPS", "0"},
		{"zero timeout", "CHAT_TIMEOUT", "0s"},
		{"not a number", "IMAGE_STEPS", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
port: "8001"
chat_model: "mistral:7b"
vision_model: "bakllava"
sd_steps: 35
sd_size: "1024x768"
session_ttl: "2h"
chat_timeout: 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "8001", cfg.Server.Port)
	assert.Equal(t, "mistral:7b", cfg.Backend.ChatModel)
	assert.Equal(t, "bakllava", cfg.Backend.VisionModel)
	assert.Equal(t, 35, cfg.Image.Steps)
	assert.Equal(t, "1024x768", cfg.Image.Size)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 120*time.Second, cfg.Backend.ChatTimeout)

	// Untouched keys keep their defaults
	assert.Equal(t, "llava:latest", Default().Backend.VisionModel)
	assert.Equal(t, 90*time.Second, cfg.Backend.VisionTimeout)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat_model: from-file\nsd_steps: 40\n"), 0o600))

	t.Setenv("CHAT_MODEL", "from-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Backend.ChatModel)
	assert.Equal(t, 40, cfg.Image.Steps)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_ttl: soon\n"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		wantW   int
		wantH   int
		wantErr bool
	}{
		{"512x512", 512, 512, false},
		{"768X1024", 768, 1024, false},
		{" 640 x 480 ", 640, 480, false},
		{"512", 0, 0, true},
		{"0x512", 0, 0, true},
		{"-1x512", 0, 0, true},
		{"axb", 0, 0, true},
		{"1x2x3", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			w, h, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

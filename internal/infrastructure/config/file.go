package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// FileEnvVar names the environment variable pointing at the settings file.
const FileEnvVar = "NOVA_CONFIG_FILE"

// fileSettings mirrors the settings an operator edits in the admin screen.
// Pointer fields distinguish "absent" from zero values.
type fileSettings struct {
	Port          *string  `yaml:"port"`
	BackendURL    *string  `yaml:"backend_url"`
	ChatModel     *string  `yaml:"chat_model"`
	VisionModel   *string  `yaml:"vision_model"`
	VisionUpload  *bool    `yaml:"vision_upload"`
	SDSteps       *int     `yaml:"sd_steps"`
	SDSize        *string  `yaml:"sd_size"`
	CFGScale      *float64 `yaml:"cfg_scale"`
	Negative      *string  `yaml:"negative_prompt"`
	SessionTTL    *string  `yaml:"session_ttl"`
	SessionWindow *int     `yaml:"session_window"`
	ChatTimeout   *string  `yaml:"chat_timeout"`
	ImageTimeout  *string  `yaml:"image_timeout"`
	VisionTimeout *string  `yaml:"vision_timeout"`
}

// applyFile overlays the YAML settings file at path onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if fs.Port != nil {
		cfg.Server.Port = *fs.Port
	}
	if fs.BackendURL != nil {
		cfg.Backend.URL = *fs.BackendURL
	}
	if fs.ChatModel != nil {
		cfg.Backend.ChatModel = *fs.ChatModel
	}
	if fs.VisionModel != nil {
		cfg.Backend.VisionModel = *fs.VisionModel
	}
	if fs.VisionUpload != nil {
		cfg.Backend.VisionUpload = *fs.VisionUpload
	}
	if fs.SDSteps != nil {
		cfg.Image.Steps = *fs.SDSteps
	}
	if fs.SDSize != nil {
		cfg.Image.Size = *fs.SDSize
	}
	if fs.CFGScale != nil {
		cfg.Image.CFGScale = *fs.CFGScale
	}
	if fs.Negative != nil {
		cfg.Image.NegativePrompt = *fs.Negative
	}
	if fs.SessionWindow != nil {
		cfg.Session.Window = *fs.SessionWindow
	}

	durations := []struct {
		name  string
		value *string
		dst   *time.Duration
	}{
		{"session_ttl", fs.SessionTTL, &cfg.Session.TTL},
		{"chat_timeout", fs.ChatTimeout, &cfg.Backend.ChatTimeout},
		{"image_timeout", fs.ImageTimeout, &cfg.Backend.ImageTimeout},
		{"vision_timeout", fs.VisionTimeout, &cfg.Backend.VisionTimeout},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := parseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("settings file %s: %s: %w", path, d.name, err)
		}
		*d.dst = parsed
	}

	return nil
}

// parseDuration accepts Go duration strings and bare seconds ("120").
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

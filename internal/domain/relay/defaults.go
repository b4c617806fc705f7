package relay

import (
	"github.com/GriffinCanCode/NovaRelay/backend/internal/backend"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/config"
	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
)

// Image parameter limits accepted from clients.
const (
	MaxImageDimension = 2048
	MaxImageSteps     = 150
)

// Defaults fill in what a request leaves unset.
type Defaults struct {
	ChatModel      string
	VisionModel    string
	Width          int
	Height         int
	Steps          int
	CFGScale       float64
	NegativePrompt string
	Seed           int64
	Sampler        string
}

// DefaultsFromConfig reads request defaults from the relay configuration.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	w, h := cfg.ImageSize()
	return Defaults{
		ChatModel:      cfg.Backend.ChatModel,
		VisionModel:    cfg.Backend.VisionModel,
		Width:          w,
		Height:         h,
		Steps:          cfg.Image.Steps,
		CFGScale:       cfg.Image.CFGScale,
		NegativePrompt: cfg.Image.NegativePrompt,
		Seed:           cfg.Image.Seed,
		Sampler:        cfg.Image.Sampler,
	}
}

// imageRequest resolves an image request against the defaults. Zero
// values take the default; negative or oversized values are rejected.
func (d Defaults) imageRequest(req types.RelayRequest) (backend.ImageRequest, error) {
	out := backend.ImageRequest{
		Prompt:         req.Prompt,
		Width:          pick(req.Width, d.Width),
		Height:         pick(req.Height, d.Height),
		Steps:          pick(req.Steps, d.Steps),
		CFGScale:       d.CFGScale,
		NegativePrompt: firstNonEmpty(req.NegativePrompt, d.NegativePrompt),
		Seed:           d.Seed,
		Sampler:        d.Sampler,
	}
	if req.CFGScale != 0 {
		out.CFGScale = req.CFGScale
	}
	if req.Seed != nil {
		out.Seed = *req.Seed
	}

	if out.Width <= 0 || out.Height <= 0 {
		return out, apperrors.Validation("width and height must be positive, got %dx%d", out.Width, out.Height)
	}
	if out.Width > MaxImageDimension || out.Height > MaxImageDimension {
		return out, apperrors.Validation("width and height must not exceed %d, got %dx%d", MaxImageDimension, out.Width, out.Height)
	}
	if out.Steps <= 0 || out.Steps > MaxImageSteps {
		return out, apperrors.Validation("steps must be between 1 and %d, got %d", MaxImageSteps, out.Steps)
	}
	if out.CFGScale < 0 {
		return out, apperrors.Validation("cfg_scale must not be negative")
	}
	return out, nil
}

// pick returns v unless it is zero.
func pick(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

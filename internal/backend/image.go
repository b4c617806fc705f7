package backend

import (
	"context"

	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ImageRequest holds fully resolved image generation parameters.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CFGScale       float64
	Seed           int64
	Sampler        string
}

// ImageResult is a decoded generated image.
type ImageResult struct {
	PNG  []byte
	Seed *int64
}

type imagePayload struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"steps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	CFGScale       float64 `json:"cfg_scale"`
	Seed           int64   `json:"seed"`
	Sampler        string  `json:"sampler_name,omitempty"`
	BatchSize      int     `json:"batch_size"`
	NIter          int     `json:"n_iter"`
}

// GenerateImage requests one image and returns the first one the backend
// produced, with its seed when reported.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	payload := imagePayload{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          req.Steps,
		Width:          req.Width,
		Height:         req.Height,
		CFGScale:       req.CFGScale,
		Seed:           req.Seed,
		Sampler:        req.Sampler,
		BatchSize:      1,
		NIter:          1,
	}

	resp, err := c.do(ctx, EndpointImage, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(payload).Post(pathImage)
	})
	if err != nil {
		return nil, err
	}

	backend := string(EndpointImage)

	var reply imageReply
	if err := sonic.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, apperrors.Protocol(backend, "reply is not valid JSON: %v", err)
	}
	if len(reply.Images) == 0 {
		return nil, apperrors.Protocol(backend, "reply contains no images")
	}

	png, err := utils.DecodeBase64Image(reply.Images[0])
	if err != nil {
		return nil, apperrors.Protocol(backend, "first image is not valid base64: %v", err)
	}

	seed, ok := parseSeed(reply.Info)
	if !ok {
		// The seed is optional; an unreadable info block does not fail the call.
		c.logger.FromContext(ctx).Debug("Image info could not be parsed", zap.Int("info_length", len(reply.Info)))
	}

	return &ImageResult{PNG: png, Seed: seed}, nil
}

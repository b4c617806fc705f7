package backend

import (
	"bytes"
	"context"
	"encoding/base64"

	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
)

type visionPayload struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
	Model  string `json:"model"`
}

// AnalyzeImage asks the vision model about image and returns its answer.
// By default the image travels as a multipart file upload; the JSON
// variant embeds it as base64.
func (c *Client) AnalyzeImage(ctx context.Context, prompt string, image []byte, model string) (string, error) {
	var send func(r *resty.Request) (*resty.Response, error)

	if c.opts.VisionUpload {
		filename := "image" + mimetype.Detect(image).Extension()
		send = func(r *resty.Request) (*resty.Response, error) {
			return r.
				SetFileReader("file", filename, bytes.NewReader(image)).
				SetFormData(map[string]string{
					"prompt": prompt,
					"model":  model,
				}).
				Post(pathVisionUpload)
		}
	} else {
		payload := visionPayload{
			Prompt: prompt,
			Image:  base64.StdEncoding.EncodeToString(image),
			Model:  model,
		}
		send = func(r *resty.Request) (*resty.Response, error) {
			return r.SetBody(payload).Post(pathVision)
		}
	}

	resp, err := c.do(ctx, EndpointVision, send)
	if err != nil {
		return "", err
	}

	text, _, ok := matchText(resp.Body(), visionShapes)
	if !ok {
		return "", apperrors.Protocol(string(EndpointVision), "reply has no response field")
	}
	return text, nil
}

package backend

import (
	"context"

	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// ListChatModels returns the model names the chat backend offers.
func (c *Client) ListChatModels(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, EndpointModels, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(pathChatModels)
	})
	if err != nil {
		return nil, err
	}

	// Ollama tag listing
	var reply struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := sonic.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, apperrors.Protocol(string(EndpointModels), "chat model listing is not valid JSON: %v", err)
	}

	names := make([]string, 0, len(reply.Models))
	for _, m := range reply.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// ListImageModels returns the checkpoints the image backend offers.
func (c *Client) ListImageModels(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, EndpointModels, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(pathImageModels)
	})
	if err != nil {
		return nil, err
	}

	// Stable Diffusion WebUI checkpoint listing
	var reply []struct {
		Title     string `json:"title"`
		ModelName string `json:"model_name"`
	}
	if err := sonic.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, apperrors.Protocol(string(EndpointModels), "image model listing is not valid JSON: %v", err)
	}

	names := make([]string, 0, len(reply))
	for _, m := range reply {
		name := m.ModelName
		if name == "" {
			name = m.Title
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

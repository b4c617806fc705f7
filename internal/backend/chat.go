package backend

import (
	"context"

	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// chatPayload is the full-history chat contract: the backend keeps no
// conversation state of its own.
type chatPayload struct {
	Messages []types.Turn `json:"messages"`
	Model    string       `json:"model"`
	Stream   bool         `json:"stream"`
}

// Chat sends the context window plus the new user prompt and returns the
// assistant's reply text.
func (c *Client) Chat(ctx context.Context, prompt string, history []types.Turn, model string) (string, error) {
	messages := make([]types.Turn, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, types.UserTurn(prompt))

	resp, err := c.do(ctx, EndpointChat, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(chatPayload{Messages: messages, Model: model, Stream: false}).Post(pathChat)
	})
	if err != nil {
		return "", err
	}

	text, shape, ok := matchText(resp.Body(), chatShapes)
	if !ok {
		return "", apperrors.Protocol(string(EndpointChat), "reply has neither message.content nor response")
	}

	c.logger.FromContext(ctx).Debug("Chat reply parsed",
		zap.String("shape", shape),
		zap.Int("history_turns", len(history)),
		zap.Int("reply_length", len(text)))
	return text, nil
}

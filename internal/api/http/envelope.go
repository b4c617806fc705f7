package http

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
)

// Envelope is the uniform response body of every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
	// Status is the backend's HTTP status for backend_http failures.
	Status int `json:"status,omitempty"`
}

// RelayData is the success payload of POST /relay.
type RelayData struct {
	Type           types.Kind `json:"type"`
	Response       string     `json:"response,omitempty"`
	Image          string     `json:"image,omitempty"`
	Seed           *int64     `json:"seed,omitempty"`
	SessionID      string     `json:"session_id,omitempty"`
	SessionRenewed bool       `json:"session_renewed,omitempty"`
	Inferred       bool       `json:"inferred,omitempty"`
}

func newRelayData(r *types.RelayResult) RelayData {
	data := RelayData{
		Type:           r.Kind,
		Response:       r.Text,
		Seed:           r.Seed,
		SessionID:      r.SessionID,
		SessionRenewed: r.SessionRenewed,
		Inferred:       r.Inferred,
	}
	if len(r.Image) > 0 {
		data.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(r.Image)
	}
	return data
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// fail writes the failure envelope for err with its mapped status code.
func fail(c *gin.Context, err error) {
	env := Envelope{
		Error: apperrors.PublicMessage(err),
		Kind:  string(apperrors.KindOf(err)),
	}
	if appErr, found := apperrors.As(err); found {
		env.Status = appErr.Status
	}
	c.JSON(apperrors.HTTPCode(err), env)
}

func failWith(c *gin.Context, code int, kind, message string) {
	c.JSON(code, Envelope{Error: message, Kind: kind})
}

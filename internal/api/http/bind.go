package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/config"
	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/utils"
)

// MaxBodyBytes bounds a relay request body; a base64 image of MaxImageSize
// plus form overhead fits.
const MaxBodyBytes = 16 << 20

// imageFields are the multipart fields an uploaded image may arrive in.
var imageFields = []string{"image", "file"}

// relayBody is the inbound relay request, as JSON or form fields.
type relayBody struct {
	Type           string  `json:"type" form:"type"`
	Prompt         string  `json:"prompt" form:"prompt"`
	SessionID      string  `json:"session_id" form:"session_id"`
	Image          string  `json:"image" form:"image"`
	Model          string  `json:"model" form:"model"`
	Size           string  `json:"size" form:"size"`
	Width          int     `json:"width" form:"width"`
	Height         int     `json:"height" form:"height"`
	Steps          int     `json:"steps" form:"steps"`
	NegativePrompt string  `json:"negative_prompt" form:"negative_prompt"`
	CFGScale       float64 `json:"cfg_scale" form:"cfg_scale"`
	Seed           *int64  `json:"seed" form:"seed"`
}

// bindRelay decodes the request into a RelayRequest. Every failure is a
// validation error.
func bindRelay(c *gin.Context) (types.RelayRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	var body relayBody
	if err := c.ShouldBind(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return types.RelayRequest{}, apperrors.Validation("request body exceeds %d bytes", MaxBodyBytes)
		}
		return types.RelayRequest{}, apperrors.Validation("invalid request body: %v", err)
	}

	kind, known := types.ParseKind(body.Type)
	if !known {
		return types.RelayRequest{}, apperrors.Validation("unknown request type %q", body.Type)
	}

	req := types.RelayRequest{
		Kind:           kind,
		Prompt:         body.Prompt,
		SessionID:      body.SessionID,
		Width:          body.Width,
		Height:         body.Height,
		Steps:          body.Steps,
		NegativePrompt: body.NegativePrompt,
		CFGScale:       body.CFGScale,
		Seed:           body.Seed,
		Model:          body.Model,
	}

	if body.Size != "" && req.Width == 0 && req.Height == 0 {
		w, h, err := config.ParseSize(body.Size)
		if err != nil {
			return req, apperrors.Validation("%v", err)
		}
		req.Width, req.Height = w, h
	}

	image, err := uploadedImage(c)
	if err != nil {
		return req, err
	}
	if image == nil && body.Image != "" {
		image, err = utils.DecodeBase64Image(body.Image)
		if err != nil {
			return req, apperrors.Validation("%v", err)
		}
	}
	req.Image = image

	return req, nil
}

// uploadedImage reads the first multipart file among imageFields. It
// returns nil when the request carries no upload.
func uploadedImage(c *gin.Context) ([]byte, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}

	for _, field := range imageFields {
		fh, err := c.FormFile(field)
		if err != nil {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.Validation("cannot read uploaded %s: %v", field, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, utils.MaxImageSize+1))
		_ = f.Close()
		if err != nil {
			return nil, apperrors.Validation("cannot read uploaded %s: %v", field, err)
		}
		if len(data) > utils.MaxImageSize {
			return nil, apperrors.Validation("uploaded %s exceeds %d bytes", field, utils.MaxImageSize)
		}
		return data, nil
	}
	return nil, nil
}

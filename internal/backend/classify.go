package backend

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/resilience"
	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

const maxDetailLength = 512

// classify turns a transport result into the relay error taxonomy. A nil
// return means a 2xx reply.
func classify(ep Endpoint, resp *resty.Response, err error) error {
	backend := string(ep)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Timeout(backend, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return apperrors.Timeout(backend, err)
		}
		return apperrors.Unreachable(backend, err)
	}

	if resp == nil || resp.RawResponse == nil {
		return apperrors.Unreachable(backend, errors.New("no response"))
	}

	status := resp.StatusCode()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return apperrors.HTTPStatus(backend, status, errorDetail(resp.Body()))
	}
	return nil
}

// errorDetail extracts the backend's message from an error body. FastAPI
// replies {"detail": "..."}; validation failures carry a list instead.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail interface{} `json:"detail"`
		Error  interface{} `json:"error"`
	}
	if err := sonic.Unmarshal(body, &envelope); err == nil {
		for _, v := range []interface{}{envelope.Detail, envelope.Error} {
			switch d := v.(type) {
			case nil:
			case string:
				return truncate(d)
			default:
				if s, err := sonic.MarshalString(d); err == nil {
					return truncate(s)
				}
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) <= maxDetailLength {
		return s
	}
	cut := maxDetailLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests)
}

// countsAsSuccess tells the breaker which failures are the backend's fault.
// Client cancellations, 4xx replies and shape mismatches leave it closed.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		return false
	}
	switch appErr.Kind {
	case apperrors.KindValidation, apperrors.KindBackendProtocol:
		return true
	case apperrors.KindBackendHTTP:
		return appErr.Status < http.StatusInternalServerError
	default:
		return false
	}
}

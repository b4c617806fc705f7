package relay

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/backend"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/intent"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/domain/window"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/monitoring"
	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/utils"
	"go.uber.org/zap"
)

// Backend is the outbound side of the relay.
type Backend interface {
	Chat(ctx context.Context, prompt string, history []types.Turn, model string) (string, error)
	GenerateImage(ctx context.Context, req backend.ImageRequest) (*backend.ImageResult, error)
	AnalyzeImage(ctx context.Context, prompt string, image []byte, model string) (string, error)
}

// Dispatcher is the relay's entry point: it resolves the request kind,
// validates input and routes the request to the backend, recording chat
// exchanges in the session's context window.
type Dispatcher struct {
	backend    Backend
	windows    *window.Manager
	classifier *intent.Classifier
	defaults   Defaults
	logger     *logging.Logger
	metrics    *monitoring.Metrics
}

// NewDispatcher creates a dispatcher. classifier, logger and metrics may
// be nil.
func NewDispatcher(b Backend, windows *window.Manager, classifier *intent.Classifier, defaults Defaults, logger *logging.Logger, metrics *monitoring.Metrics) *Dispatcher {
	if classifier == nil {
		classifier = intent.New()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		backend:    b,
		windows:    windows,
		classifier: classifier,
		defaults:   defaults,
		logger:     logger.Named("relay"),
		metrics:    metrics,
	}
}

// Dispatch relays one request. Validation failures return a validation
// error before any backend is contacted; backend failures are returned as
// classified by the backend client. Only successful chat requests change
// session state.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.RelayRequest) (*types.RelayResult, error) {
	start := time.Now()

	req.Prompt = utils.SanitizePrompt(req.Prompt)
	kind, inferred := d.resolveKind(req)

	log := d.logger.FromContext(ctx).With(
		zap.String("kind", string(kind)),
		zap.Bool("inferred", inferred),
		zap.Int("prompt_length", len(req.Prompt)))

	result, err := d.dispatch(ctx, kind, req)

	outcome := "success"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
	}
	if d.metrics != nil {
		d.metrics.RecordRelay(string(kind), outcome)
		if inferred {
			d.metrics.RecordInferred(string(kind))
		}
	}

	if err != nil {
		if apperrors.IsKind(err, apperrors.KindValidation) {
			log.Info("Relay request rejected", zap.Error(err))
		} else {
			log.Warn("Relay request failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		}
		return nil, err
	}

	result.Kind = kind
	result.Inferred = inferred
	log.Info("Relay request completed",
		zap.String("session_id", result.SessionID),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// resolveKind applies intent inference when no mode was selected. An
// attached image without a mode means vision.
func (d *Dispatcher) resolveKind(req types.RelayRequest) (types.Kind, bool) {
	if req.Kind != "" && req.Kind != types.KindAuto {
		return req.Kind, false
	}
	if len(req.Image) > 0 {
		return types.KindVision, true
	}
	return d.classifier.Infer(req.Prompt), true
}

func (d *Dispatcher) dispatch(ctx context.Context, kind types.Kind, req types.RelayRequest) (*types.RelayResult, error) {
	switch kind {
	case types.KindChat:
		return d.chat(ctx, req)
	case types.KindImageGenerate:
		return d.generateImage(ctx, req)
	case types.KindVision:
		return d.analyzeImage(ctx, req)
	default:
		return nil, apperrors.Validation("unknown request type %q", kind)
	}
}

func (d *Dispatcher) chat(ctx context.Context, req types.RelayRequest) (*types.RelayResult, error) {
	if err := utils.ValidatePrompt(req.Prompt); err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	if err := utils.ValidateSessionID(req.SessionID); err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	model := firstNonEmpty(req.Model, d.defaults.ChatModel)

	reply, out, err := d.windows.Exchange(ctx, req.SessionID, req.Prompt,
		func(ctx context.Context, history []types.Turn) (string, error) {
			return d.backend.Chat(ctx, req.Prompt, history, model)
		})
	if err != nil {
		return nil, sessionWaitError(err)
	}

	return &types.RelayResult{
		Text:           reply,
		SessionID:      out.ID,
		SessionRenewed: out.Renewed,
	}, nil
}

func (d *Dispatcher) generateImage(ctx context.Context, req types.RelayRequest) (*types.RelayResult, error) {
	if err := utils.ValidatePrompt(req.Prompt); err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	imgReq, err := d.defaults.imageRequest(req)
	if err != nil {
		return nil, err
	}

	img, err := d.backend.GenerateImage(ctx, imgReq)
	if err != nil {
		return nil, err
	}

	return &types.RelayResult{Image: img.PNG, Seed: img.Seed}, nil
}

func (d *Dispatcher) analyzeImage(ctx context.Context, req types.RelayRequest) (*types.RelayResult, error) {
	if len(req.Image) == 0 {
		return nil, apperrors.Validation("image must not be empty")
	}
	if err := utils.ValidatePrompt(req.Prompt); err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	if _, err := utils.ValidateImage(req.Image); err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	text, err := d.backend.AnalyzeImage(ctx, req.Prompt, req.Image, firstNonEmpty(req.Model, d.defaults.VisionModel))
	if err != nil {
		return nil, err
	}
	return &types.RelayResult{Text: text}, nil
}

// sessionWaitError classifies a context error raised while waiting for the
// session lock; backend errors pass through unchanged.
func sessionWaitError(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("session", err)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.New(apperrors.KindInternal, "request cancelled while waiting for session", err)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

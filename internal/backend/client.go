package backend

import (
	"context"
	"crypto/tls"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/tracing"
	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Endpoint names a backend service; it labels logs, metrics and breakers.
type Endpoint string

const (
	EndpointChat   Endpoint = "chat"
	EndpointImage  Endpoint = "image"
	EndpointVision Endpoint = "vision"
	EndpointModels Endpoint = "models"
)

// Backend paths, relative to Options.BaseURL.
const (
	pathChat         = "/chat"
	pathImage        = "/image/generate"
	pathVision       = "/vision"
	pathVisionUpload = "/vision/upload"
	pathChatModels   = "/chat/models"
	pathImageModels  = "/image/models"
)

// Options configures the backend client.
type Options struct {
	BaseURL      string
	TLSVerify    bool
	VisionUpload bool

	ChatTimeout   time.Duration
	ImageTimeout  time.Duration
	VisionTimeout time.Duration
	ModelsTimeout time.Duration

	BreakerEnabled  bool
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// OptionsFromConfig derives client options from the relay configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:         cfg.Backend.URL,
		TLSVerify:       cfg.Backend.TLSVerify,
		VisionUpload:    cfg.Backend.VisionUpload,
		ChatTimeout:     cfg.Backend.ChatTimeout,
		ImageTimeout:    cfg.Backend.ImageTimeout,
		VisionTimeout:   cfg.Backend.VisionTimeout,
		ModelsTimeout:   cfg.Backend.ModelsTimeout,
		BreakerEnabled:  cfg.Breaker.Enabled,
		BreakerFailures: cfg.Breaker.Failures,
		BreakerCooldown: cfg.Breaker.Cooldown,
	}
}

// Client issues single-attempt calls to the AI backend. It is safe for
// concurrent use; configuration is read-only after New.
type Client struct {
	http     *resty.Client
	opts     Options
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	breakers map[Endpoint]*resilience.Breaker
}

// New creates a backend client. logger and metrics may be nil.
func New(opts Options, logger *logging.Logger, metrics *monitoring.Metrics) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("backend")

	// Only the client's pooled transport is kept; the retrying client
	// itself is never used, so every call is one attempt.
	transport := retryablehttp.NewClient().HTTPClient.Transport
	if t, ok := transport.(*http.Transport); ok {
		t = t.Clone()
		// The backend is a private-network peer, usually with a self-signed cert.
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: !opts.TLSVerify} //nolint:gosec
		transport = t
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTransport(transport).
		SetRetryCount(0).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("User-Agent", "NovaRelay/1.0").
		SetHeader("Accept", "application/json")

	c := &Client{
		http:     restyClient,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		breakers: make(map[Endpoint]*resilience.Breaker),
	}

	if opts.BreakerEnabled {
		for _, ep := range []Endpoint{EndpointChat, EndpointImage, EndpointVision} {
			c.breakers[ep] = c.newBreaker(ep)
		}
	}

	return c
}

func (c *Client) newBreaker(ep Endpoint) *resilience.Breaker {
	return resilience.New(string(ep), resilience.Settings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      c.opts.BreakerCooldown,
		ReadyToTrip:  resilience.TripAfter(c.opts.BreakerFailures),
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to resilience.State) {
			c.logger.Warn("Backend circuit breaker changed state",
				zap.String("backend", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
			if c.metrics != nil {
				c.metrics.SetBreakerState(name, int(to))
			}
		},
	})
}

// BreakerStates reports the state of each backend breaker.
func (c *Client) BreakerStates() map[string]string {
	states := make(map[string]string, len(c.breakers))
	for ep, b := range c.breakers {
		states[string(ep)] = b.State().String()
	}
	return states
}

// timeoutFor returns the per-call timeout for an endpoint.
func (c *Client) timeoutFor(ep Endpoint) time.Duration {
	switch ep {
	case EndpointChat:
		return c.opts.ChatTimeout
	case EndpointImage:
		return c.opts.ImageTimeout
	case EndpointVision:
		return c.opts.VisionTimeout
	default:
		return c.opts.ModelsTimeout
	}
}

// do runs one outbound call: timeout, breaker, trace headers, metrics and
// error classification. build configures the request and sends it.
func (c *Client) do(ctx context.Context, ep Endpoint, build func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	timeout := c.timeoutFor(ep)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	timer := monitoring.NewTimer(c.metrics, string(ep))

	// resp survives a classified failure so its status is still recorded.
	resp, err := resilience.Call(c.breakers[ep], func() (*resty.Response, error) {
		req := c.http.R().SetContext(ctx)
		tracing.InjectTraceContext(ctx, req.Header)

		resp, err := build(req)
		return resp, classify(ep, resp, err)
	})
	if err != nil && isBreakerRejection(err) {
		err = apperrors.Unreachable(string(ep), err)
	}

	status := "error"
	if resp != nil && resp.RawResponse != nil {
		status = strconv.Itoa(resp.StatusCode())
	}
	took := timer.Stop(status)

	log := c.logger.FromContext(ctx)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordBackendError(string(ep), string(apperrors.KindOf(err)))
		}
		log.Warn("Backend call failed",
			zap.String("backend", string(ep)),
			zap.String("status", status),
			zap.Duration("duration", took),
			zap.Error(err))
		return nil, err
	}

	log.Debug("Backend call completed",
		zap.String("backend", string(ep)),
		zap.String("status", status),
		zap.Duration("duration", took))
	return resp, nil
}

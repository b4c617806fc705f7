package backend

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/infrastructure/tracing"
	apperrors "github.com/GriffinCanCode/NovaRelay/backend/internal/shared/errors"
	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes is a valid 1x1 PNG.
var pngBytes, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==")

func testOptions(url string) Options {
	return Options{
		BaseURL:         url,
		VisionUpload:    true,
		ChatTimeout:     2 * time.Second,
		ImageTimeout:    2 * time.Second,
		VisionTimeout:   2 * time.Second,
		ModelsTimeout:   2 * time.Second,
		BreakerEnabled:  false,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestChatSendsHistoryAndParsesNestedMessage(t *testing.T) {
	var got chatPayload
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		writeJSON(w, http.StatusOK, `{"message":{"role":"assistant","content":"Hi there"}}`)
	})

	client := New(testOptions(srv.URL), nil, nil)
	history := []types.Turn{types.UserTurn("Hallo"), types.AssistantTurn("Hallo!")}

	text, err := client.Chat(context.Background(), "Hello", history, "mixtral:8x7b")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)

	assert.Equal(t, "mixtral:8x7b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, []types.Turn{
		types.UserTurn("Hallo"),
		types.AssistantTurn("Hallo!"),
		types.UserTurn("Hello"),
	}, got.Messages)
}

func TestChatReplyShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     string
		wantKind apperrors.Kind
	}{
		{"nested message", `{"message":{"content":"nested"}}`, "nested", ""},
		{"flat response", `{"response":"flat"}`, "flat", ""},
		{"nested wins over flat", `{"message":{"content":"nested"},"response":"flat"}`, "nested", ""},
		{"message without content falls back", `{"message":{"role":"assistant"},"response":"flat"}`, "flat", ""},
		{"unknown shape", `{"output":"x"}`, "", apperrors.KindBackendProtocol},
		{"not json", `<html>oops</html>`, "", apperrors.KindBackendProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			client := New(testOptions(srv.URL), nil, nil)

			text, err := client.Chat(context.Background(), "Hello", nil, "m")
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestChatHTTPErrorCarriesStatusAndDetail(t *testing.T) {
	var hits int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusInternalServerError, `{"detail":"Ollama API Fehler: model not loaded"}`)
	})
	metrics := monitoring.NewMetrics()
	client := New(testOptions(srv.URL), nil, metrics)

	_, err := client.Chat(context.Background(), "Hello", nil, "m")
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindBackendHTTP, appErr.Kind)
	assert.Equal(t, 500, appErr.Status)
	assert.Contains(t, appErr.Message, "model not loaded")

	// One attempt, and the failed reply's status still reaches the metrics.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BackendCalls.WithLabelValues("chat", "500")))
}

func TestChatUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(testOptions(url), nil, nil)
	_, err := client.Chat(context.Background(), "Hello", nil, "m")
	assert.Equal(t, apperrors.KindBackendUnreachable, apperrors.KindOf(err))
}

func TestChatSelfSignedBackend(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"response":"ok"}`)
	}))
	t.Cleanup(srv.Close)

	// Certificate checks are off unless asked for.
	client := New(testOptions(srv.URL), nil, nil)
	text, err := client.Chat(context.Background(), "Hello", nil, "m")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	opts := testOptions(srv.URL)
	opts.TLSVerify = true
	strict := New(opts, nil, nil)
	_, err = strict.Chat(context.Background(), "Hello", nil, "m")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindBackendUnreachable, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "certificate")
}

func TestChatTimeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	opts := testOptions(srv.URL)
	opts.ChatTimeout = 50 * time.Millisecond
	client := New(opts, nil, nil)

	_, err := client.Chat(context.Background(), "Hello", nil, "m")
	assert.Equal(t, apperrors.KindBackendTimeout, apperrors.KindOf(err))
}

func TestChatCancelledByCaller(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client disconnect.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	client := New(testOptions(srv.URL), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Chat(ctx, "Hello", nil, "m")
	assert.Equal(t, apperrors.KindBackendUnreachable, apperrors.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateImageSeedRoundTrip(t *testing.T) {
	image := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name string
		info string
		seed *int64
	}{
		{"object info", `{"seed":42}`, ptr(42)},
		{"string info", `"{\"seed\": 42, \"steps\": 20}"`, ptr(42)},
		{"missing info", `null`, nil},
		{"info without seed", `{"steps":20}`, nil},
		{"garbage info string", `"not json"`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/image/generate", r.URL.Path)
				writeJSON(w, http.StatusOK, `{"images":["`+image+`"],"info":`+tt.info+`}`)
			})
			client := New(testOptions(srv.URL), nil, nil)

			result, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "a cat", Width: 512, Height: 512, Steps: 20, Seed: -1})
			require.NoError(t, err)
			assert.Equal(t, pngBytes, result.PNG)
			assert.Equal(t, tt.seed, result.Seed)
		})
	}
}

func TestGenerateImageSendsParameters(t *testing.T) {
	var got map[string]interface{}
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		writeJSON(w, http.StatusOK, `{"images":["data:image/png;base64,`+base64.StdEncoding.EncodeToString(pngBytes)+`"]}`)
	})
	client := New(testOptions(srv.URL), nil, nil)

	result, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:         "a lighthouse",
		NegativePrompt: "blurry",
		Width:          768,
		Height:         512,
		Steps:          30,
		CFGScale:       6.5,
		Seed:           -1,
		Sampler:        "Euler a",
	})
	require.NoError(t, err)
	assert.Equal(t, pngBytes, result.PNG)

	assert.Equal(t, "a lighthouse", got["prompt"])
	assert.Equal(t, "blurry", got["negative_prompt"])
	assert.EqualValues(t, 768, got["width"])
	assert.EqualValues(t, 512, got["height"])
	assert.EqualValues(t, 30, got["steps"])
	assert.EqualValues(t, 6.5, got["cfg_scale"])
	assert.EqualValues(t, -1, got["seed"])
	assert.Equal(t, "Euler a", got["sampler_name"])
	assert.EqualValues(t, 1, got["batch_size"])
	assert.EqualValues(t, 1, got["n_iter"])
}

func TestGenerateImageProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no images field", `{"info":{"seed":1}}`},
		{"empty image list", `{"images":[]}`},
		{"invalid base64", `{"images":["%%%"]}`},
		{"not json", `oops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			client := New(testOptions(srv.URL), nil, nil)

			_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x", Width: 1, Height: 1, Steps: 1})
			assert.Equal(t, apperrors.KindBackendProtocol, apperrors.KindOf(err))
		})
	}
}

func TestAnalyzeImageMultipartUpload(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vision/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "What is this?", r.FormValue("prompt"))
		assert.Equal(t, "llava:latest", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "image.png", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, pngBytes, data)

		writeJSON(w, http.StatusOK, `{"model":"llava:latest","response":"A single pixel.","done":true}`)
	})
	client := New(testOptions(srv.URL), nil, nil)

	text, err := client.AnalyzeImage(context.Background(), "What is this?", pngBytes, "llava:latest")
	require.NoError(t, err)
	assert.Equal(t, "A single pixel.", text)
}

func TestAnalyzeImageJSONVariant(t *testing.T) {
	var got visionPayload
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vision", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		writeJSON(w, http.StatusOK, `{"response":"A pixel."}`)
	})
	opts := testOptions(srv.URL)
	opts.VisionUpload = false
	client := New(opts, nil, nil)

	text, err := client.AnalyzeImage(context.Background(), "Describe", pngBytes, "llava:13b")
	require.NoError(t, err)
	assert.Equal(t, "A pixel.", text)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngBytes), got.Image)
	assert.Equal(t, "llava:13b", got.Model)
}

func TestAnalyzeImageMissingResponse(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message":{"content":"wrong shape for vision"}}`)
	})
	client := New(testOptions(srv.URL), nil, nil)

	_, err := client.AnalyzeImage(context.Background(), "Describe", pngBytes, "m")
	assert.Equal(t, apperrors.KindBackendProtocol, apperrors.KindOf(err))
}

func TestTraceHeadersForwarded(t *testing.T) {
	var traceID string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		traceID = r.Header.Get(tracing.HeaderTraceID)
		writeJSON(w, http.StatusOK, `{"response":"ok"}`)
	})
	client := New(testOptions(srv.URL), nil, nil)

	ctx := tracing.WithTrace(context.Background(), "trace-abc", "span-1")
	_, err := client.Chat(ctx, "Hello", nil, "m")
	require.NoError(t, err)
	assert.Equal(t, "trace-abc", traceID)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusBadGateway, `{"detail":"down"}`)
	})
	opts := testOptions(srv.URL)
	opts.BreakerEnabled = true
	client := New(opts, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := client.Chat(context.Background(), "Hello", nil, "m")
		assert.Equal(t, apperrors.KindBackendHTTP, apperrors.KindOf(err))
	}
	assert.Equal(t, "open", client.BreakerStates()["chat"])

	_, err := client.Chat(context.Background(), "Hello", nil, "m")
	assert.Equal(t, apperrors.KindBackendUnreachable, apperrors.KindOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	// Other kinds have their own breaker.
	assert.Equal(t, "closed", client.BreakerStates()["image"])
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","prompt"],"msg":"field required"}]}`)
	})
	opts := testOptions(srv.URL)
	opts.BreakerEnabled = true
	client := New(opts, nil, nil)

	for i := 0; i < 5; i++ {
		_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x", Width: 1, Height: 1, Steps: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "field required")
	}
	assert.Equal(t, "closed", client.BreakerStates()["image"])
}

func TestListModels(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/models":
			writeJSON(w, http.StatusOK, `{"models":[{"name":"mixtral:8x7b"},{"name":"llava:latest"}]}`)
		case "/image/models":
			writeJSON(w, http.StatusOK, `[{"title":"v1-5 [abc]","model_name":"v1-5"},{"title":"sdxl"}]`)
		default:
			http.NotFound(w, r)
		}
	})
	client := New(testOptions(srv.URL), nil, nil)

	chat, err := client.ListChatModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mixtral:8x7b", "llava:latest"}, chat)

	image, err := client.ListImageModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v1-5", "sdxl"}, image)
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"fastapi string", `{"detail":"Ollama Service nicht erreichbar"}`, "Ollama Service nicht erreichbar"},
		{"error field", `{"error":"model not found"}`, "model not found"},
		{"plain text", "  Bad Gateway \n", "Bad Gateway"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorDetail([]byte(tt.body)))
		})
	}
}

func TestCountsAsSuccess(t *testing.T) {
	assert.True(t, countsAsSuccess(nil))
	assert.True(t, countsAsSuccess(apperrors.HTTPStatus("chat", 404, "")))
	assert.True(t, countsAsSuccess(apperrors.Protocol("chat", "bad")))
	assert.True(t, countsAsSuccess(apperrors.Unreachable("chat", context.Canceled)))
	assert.False(t, countsAsSuccess(apperrors.HTTPStatus("chat", 503, "")))
	assert.False(t, countsAsSuccess(apperrors.Timeout("chat", context.DeadlineExceeded)))
	assert.False(t, countsAsSuccess(apperrors.Unreachable("chat", io.EOF)))
}

func ptr(v int64) *int64 { return &v }

package types

import "strings"

// Kind is the intent of a relay request.
type Kind string

const (
	// KindAuto means the client did not select a mode; intent is inferred.
	KindAuto          Kind = "auto"
	KindChat          Kind = "chat"
	KindImageGenerate Kind = "image_generate"
	KindVision        Kind = "vision"
)

// ParseKind maps the inbound type tag onto a Kind. The empty tag is KindAuto.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindAuto:
		return KindAuto, true
	case KindChat:
		return KindChat, true
	case KindImageGenerate, "image":
		return KindImageGenerate, true
	case KindVision:
		return KindVision, true
	default:
		return "", false
	}
}

// RelayRequest is a relay request of any kind. Fields irrelevant to Kind
// are ignored. Zero numeric fields fall back to configured defaults.
type RelayRequest struct {
	Kind      Kind
	Prompt    string
	SessionID string

	// Image generation
	Width          int
	Height         int
	Steps          int
	NegativePrompt string
	CFGScale       float64
	Seed           *int64

	// Vision
	Image []byte

	// Model overrides the configured chat or vision model.
	Model string
}

// RelayResult is the normalized outcome of a successful relay.
type RelayResult struct {
	Kind Kind

	// Text is the reply for chat and vision requests.
	Text string

	// Image holds the decoded PNG for image requests; Seed is set when the
	// backend reported one.
	Image []byte
	Seed  *int64

	// SessionID is the session the chat turn was recorded under.
	SessionID string
	// SessionRenewed reports that the supplied session had expired and was
	// replaced with an empty context.
	SessionRenewed bool
	// Inferred reports that Kind came from intent inference.
	Inferred bool
}

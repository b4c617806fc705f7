package backend

import (
	"bytes"
	"encoding/json"

	"github.com/bytedance/sonic"
)

// textReply covers every text-bearing reply shape the backend is known to
// produce: Ollama chat ({"message":{"content"}}) and generate ({"response"}).
type textReply struct {
	Message *struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
	Response *string `json:"response"`
}

// shapeMatcher extracts reply text from one known shape.
type shapeMatcher struct {
	name  string
	match func(r *textReply) (string, bool)
}

var (
	nestedMessage = shapeMatcher{
		name: "message.content",
		match: func(r *textReply) (string, bool) {
			if r.Message == nil || r.Message.Content == nil {
				return "", false
			}
			return *r.Message.Content, true
		},
	}
	flatResponse = shapeMatcher{
		name: "response",
		match: func(r *textReply) (string, bool) {
			if r.Response == nil {
				return "", false
			}
			return *r.Response, true
		},
	}

	// chatShapes are tried in order; first match wins.
	chatShapes   = []shapeMatcher{nestedMessage, flatResponse}
	visionShapes = []shapeMatcher{flatResponse}
)

// matchText decodes body and returns the text of the first matching shape.
func matchText(body []byte, shapes []shapeMatcher) (string, string, bool) {
	var reply textReply
	if err := sonic.Unmarshal(body, &reply); err != nil {
		return "", "", false
	}
	for _, s := range shapes {
		if text, ok := s.match(&reply); ok {
			return text, s.name, true
		}
	}
	return "", "", false
}

// imageReply is the image generation reply. Info is either an object or a
// JSON document encoded as a string.
type imageReply struct {
	Images []string        `json:"images"`
	Info   json.RawMessage `json:"info"`
}

type imageInfo struct {
	Seed *int64 `json:"seed"`
}

// parseSeed extracts info.seed, unwrapping a string-encoded info first.
func parseSeed(raw json.RawMessage) (*int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}

	if raw[0] == '"' {
		var encoded string
		if err := sonic.Unmarshal(raw, &encoded); err != nil {
			return nil, false
		}
		if encoded == "" {
			return nil, true
		}
		raw = []byte(encoded)
	}

	var info imageInfo
	if err := sonic.Unmarshal(raw, &info); err != nil {
		return nil, false
	}
	return info.Seed, true
}

package utils

import (
	"encoding/base64"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
)

// Size limits
const (
	MaxPromptLength    = 16 * 1024        // runes
	MaxSessionIDLength = 128              // bytes
	MaxImageSize       = 10 * 1024 * 1024 // 10MB decoded
)

var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	dataURLPattern = regexp.MustCompile(`^data:[a-zA-Z0-9.+/-]+;base64,`)

	// strictPolicy strips all markup; safe for concurrent use
	strictPolicy = bluemonday.StrictPolicy()
)

// SanitizePrompt strips HTML markup and surrounding whitespace from
// free-form user text. Entities produced by the sanitizer are decoded
// again so prompts like "salt & pepper" reach the model unchanged.
func SanitizePrompt(prompt string) string {
	cleaned := strictPolicy.Sanitize(prompt)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidatePrompt checks a prompt after trimming. Empty prompts are rejected.
func ValidatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	return ValidateString(trimmed, "prompt", 1, MaxPromptLength, true)
}

// ValidateSessionID validates a client-supplied session identifier.
// An empty identifier is allowed; the store issues a fresh one.
func ValidateSessionID(sessionID string) error {
	if err := ValidateString(sessionID, "session_id", 1, MaxSessionIDLength, false); err != nil {
		return err
	}

	if sessionID != "" && !SafeIDPattern.MatchString(sessionID) {
		return fmt.Errorf("session_id contains invalid characters (only alphanumeric, hyphens, and underscores allowed)")
	}

	return nil
}

// DecodeBase64Image decodes an inbound base64 image, accepting an optional
// data URL prefix ("data:image/png;base64,") and unpadded input.
func DecodeBase64Image(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	encoded = dataURLPattern.ReplaceAllString(encoded, "")
	if encoded == "" {
		return nil, fmt.Errorf("image must not be empty")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, fmt.Errorf("image is not valid base64: %w", err)
		}
	}

	return data, nil
}

// ValidateImage checks that data is a non-empty, size-bounded image and
// returns its detected MIME type.
func ValidateImage(data []byte) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image must not be empty")
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("image size %d bytes exceeds maximum %d bytes", len(data), MaxImageSize)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("image content type %q is not supported", mt.String())
	}

	return mt, nil
}

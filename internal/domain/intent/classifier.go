package intent

import (
	"strings"

	"github.com/GriffinCanCode/NovaRelay/backend/internal/shared/types"
	"golang.org/x/text/cases"
)

// DefaultTriggers are the phrases that mark a prompt as an image request,
// in German and English.
var DefaultTriggers = []string{
	"erstelle ein bild",
	"generiere ein bild",
	"male ein bild",
	"create an image",
	"generate an image",
	"draw",
	"erstelle mir",
	"zeige mir ein bild",
	"bild von",
}

// Classifier infers image-generation intent by substring match. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	triggers []string
}

// New returns a classifier over triggers, or DefaultTriggers when none
// are given.
func New(triggers ...string) *Classifier {
	if len(triggers) == 0 {
		triggers = DefaultTriggers
	}
	folded := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t = fold(strings.TrimSpace(t)); t != "" {
			folded = append(folded, t)
		}
	}
	return &Classifier{triggers: folded}
}

// Infer classifies prompt as KindImageGenerate when any trigger occurs in
// it, anywhere, and KindChat otherwise. A conversational prompt that
// contains a trigger ("tell me a joke and draw a cat") is an image request.
func (c *Classifier) Infer(prompt string) types.Kind {
	if _, ok := c.Match(prompt); ok {
		return types.KindImageGenerate
	}
	return types.KindChat
}

// Match returns the first trigger found in prompt.
func (c *Classifier) Match(prompt string) (string, bool) {
	folded := fold(prompt)
	for _, t := range c.triggers {
		if strings.Contains(folded, t) {
			return t, true
		}
	}
	return "", false
}

// fold applies Unicode case folding so "BILD VON" and "Bild von" match,
// as do "ß" variants. A fresh Caser per call: Casers are not concurrency safe.
func fold(s string) string {
	return cases.Fold().String(s)
}

var defaultClassifier = New()

// InferIntent classifies prompt with the default triggers.
func InferIntent(prompt string) types.Kind {
	return defaultClassifier.Infer(prompt)
}

package broker

import (
	"fmt"
	"strings"

	"promptcoach/internal/models"
)

type Intent string

const (
	IntentText  Intent = "text"
	IntentImage Intent = "image"
)

type triggerSet struct {
	// keywords decide the intent, first match wins
	keywords []string
	// prefixes are tried in order when cleaning an image prompt; connective forms come first
	prefixes []string
	// explicit is the prefix added when the user asks for an image directly
	explicit string
	framing  string
}

var triggerSets = map[models.Language]triggerSet{
	models.LanguageEN: {
		keywords: []string{
			"generate an image", "create an image", "make a picture", "picture of",
			"draw", "visualize", "dall-e", "dalle",
		},
		prefixes: []string{
			"generate an image of", "create an image of", "make a picture of",
			"generate an image", "create an image", "make a picture", "picture of",
			"draw", "visualize", "dall-e", "dalle",
		},
		explicit: "Generate an image of: %s",
		framing:  "Educational image appropriate for students: %s. Clear, well-lit, professional style.",
	},
	models.LanguageES: {
		keywords: []string{
			"genera una imagen", "crea una imagen", "imagen de",
			"dibuja", "visualiza", "dall-e", "dalle",
		},
		prefixes: []string{
			"genera una imagen de", "crea una imagen de",
			"genera una imagen", "crea una imagen", "imagen de",
			"dibuja", "visualiza", "dall-e", "dalle",
		},
		explicit: "Genera una imagen de: %s",
		framing:  "Imagen educativa y apropiada para estudiantes: %s. Estilo claro, bien iluminado y profesional.",
	},
}

func triggersFor(lang models.Language) triggerSet {
	if set, ok := triggerSets[lang]; ok {
		return set
	}
	return triggerSets[models.LanguageES]
}

// Classifier decides between text and image intent by keyword membership.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify never fails: anything that carries no image trigger is a text request.
func (c *Classifier) Classify(text string, lang models.Language) Intent {
	lower := strings.ToLower(text)
	for _, kw := range triggersFor(lang).keywords {
		if strings.Contains(lower, kw) {
			return IntentImage
		}
	}
	return IntentText
}

// ExplicitImageRequest rewrites a plain description as an image request.
func ExplicitImageRequest(description string, lang models.Language) string {
	return fmt.Sprintf(triggersFor(lang).explicit, strings.TrimSpace(description))
}

// StripTrigger removes the first trigger phrase found in prompt. The result is lower-cased.
func StripTrigger(prompt string, lang models.Language) string {
	lower := strings.ToLower(strings.TrimSpace(prompt))
	for _, prefix := range triggersFor(lang).prefixes {
		if idx := strings.Index(lower, prefix); idx >= 0 {
			lower = lower[:idx] + lower[idx+len(prefix):]
			break
		}
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(lower), ":,.-"))
}

// FrameImagePrompt strips the trigger phrase and appends the educational framing.
func FrameImagePrompt(prompt string, lang models.Language) string {
	return fmt.Sprintf(triggersFor(lang).framing, StripTrigger(prompt, lang))
}

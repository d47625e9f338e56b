package broker

import (
	"errors"
	"fmt"

	"promptcoach/internal/models"
)

type Capability string

const (
	CapabilityChat  Capability = "chat"
	CapabilityImage Capability = "image"
)

type OutcomeKind int

const (
	OutcomeText OutcomeKind = iota
	OutcomeImage
	OutcomeFailure
)

// Outcome is the raw result of a turn before localisation.
type Outcome struct {
	Kind       OutcomeKind
	Capability Capability
	Text       string
	ImageURL   string
	Err        error
}

func TextOutcome(text string) Outcome {
	return Outcome{Kind: OutcomeText, Capability: CapabilityChat, Text: text}
}

func ImageOutcome(url string) Outcome {
	return Outcome{Kind: OutcomeImage, Capability: CapabilityImage, ImageURL: url}
}

func FailureOutcome(capability Capability, err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Capability: capability, Err: err}
}

type ReplyKind string

const (
	ReplyText  ReplyKind = "text"
	ReplyImage ReplyKind = "image"
)

// ReplySource tells whether the answer came from the remote service, the canned table before any
// dispatch, or the canned table / failure string after a failed dispatch.
type ReplySource string

const (
	SourceRemote   ReplySource = "remote"
	SourceCanned   ReplySource = "canned"
	SourceFallback ReplySource = "fallback"
)

// Reply is the user-visible answer of a turn.
type Reply struct {
	Kind     ReplyKind   `json:"type"`
	Content  string      `json:"content"`
	ImageURL string      `json:"image_url,omitempty"`
	Source   ReplySource `json:"source"`
}

type phrases struct {
	imageGenerated string
	// imageFailed answers an image call that returned no usable url.
	imageFailed         string
	imageDispatchFailed string
	imageUnavailable    string
	chatFailed          string
}

var localized = map[models.Language]phrases{
	models.LanguageEN: {
		imageGenerated:      "I've generated this image for you",
		imageFailed:         "Couldn't generate the image",
		imageDispatchFailed: "An error occurred while generating the image. Please try with a different description.",
		imageUnavailable:    "Couldn't generate image: API key not found.",
		chatFailed:          "Sorry, there was an error processing your message. Please try again.",
	},
	models.LanguageES: {
		imageGenerated:      "He generado esta imagen para ti",
		imageFailed:         "No pude generar la imagen",
		imageDispatchFailed: "Ocurrió un error al generar la imagen. Por favor, intenta con una descripción diferente.",
		imageUnavailable:    "No se pudo generar la imagen: clave de API no encontrada.",
		chatFailed:          "Lo siento, hubo un error al procesar tu mensaje. Por favor, intenta de nuevo.",
	},
}

func phrasesFor(lang models.Language) phrases {
	if p, ok := localized[lang]; ok {
		return p
	}
	return localized[models.LanguageES]
}

// Format turns an outcome into the reply shown to the user.
func Format(o Outcome, lang models.Language) Reply {
	p := phrasesFor(lang)
	switch o.Kind {
	case OutcomeText:
		return Reply{Kind: ReplyText, Content: o.Text}
	case OutcomeImage:
		return Reply{
			Kind:     ReplyImage,
			Content:  fmt.Sprintf("%s: %s", p.imageGenerated, o.ImageURL),
			ImageURL: o.ImageURL,
		}
	default:
		if o.Capability == CapabilityImage {
			switch {
			case errors.Is(o.Err, ErrCredentialMissing):
				return Reply{Kind: ReplyText, Content: p.imageUnavailable}
			case o.Err == nil, errors.Is(o.Err, ErrRemoteMalformedResponse):
				return Reply{Kind: ReplyText, Content: p.imageFailed}
			}
			return Reply{Kind: ReplyText, Content: p.imageDispatchFailed}
		}
		return Reply{Kind: ReplyText, Content: p.chatFailed}
	}
}

// ChatFailure is the reply used when a turn could not be processed at all.
func ChatFailure(lang models.Language) Reply {
	reply := Format(FailureOutcome(CapabilityChat, nil), lang)
	reply.Source = SourceFallback
	return reply
}

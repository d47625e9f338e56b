package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"promptcoach/internal/broker"
	"promptcoach/internal/config"
	"promptcoach/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	temperature   = 0.7
	credentialTTL = 10 * time.Minute
)

// Options wires a Service from already constructed clients.
type Options struct {
	Provider string
	// ChatModel answers text turns; nil means no usable credential for the text provider.
	ChatModel model.BaseChatModel
	// OpenAI generates images and lists models for the credential check.
	OpenAI     *goopenai.Client
	ImageModel string
	MaxTokens  int
	Logger     logrus.FieldLogger
}

// Service is the remote dispatch adapter for text completion and image generation.
type Service struct {
	provider   string
	chatModel  model.BaseChatModel
	openai     *goopenai.Client
	imageModel string
	maxTokens  int
	log        logrus.FieldLogger

	mu        sync.Mutex
	status    *broker.CredentialStatus
	checkedAt time.Time
}

var _ broker.RemoteDispatcher = (*Service)(nil)

func New(opts Options) *Service {
	if opts.Provider == "" {
		opts.Provider = config.DefaultProvider
	}
	if opts.ImageModel == "" {
		opts.ImageModel = config.DefaultImageModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = config.DefaultMaxTokens
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		provider:   opts.Provider,
		chatModel:  opts.ChatModel,
		openai:     opts.OpenAI,
		imageModel: opts.ImageModel,
		maxTokens:  opts.MaxTokens,
		log:        log.WithField("component", "ai"),
	}
}

// NewFromConfig builds the chat model of the configured provider and the openai image client.
// Missing keys are not an error: the matching capability simply reports itself unavailable.
func NewFromConfig(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Service, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	provider := cfg.Chat.Provider
	opts := Options{
		Provider:   provider,
		ImageModel: cfg.Chat.ImageModel,
		MaxTokens:  cfg.Chat.MaxTokens,
		Logger:     log,
	}

	if provCfg, ok := cfg.Provider(provider); ok {
		key := SanitizeCredential(provCfg.APIKey)
		if provider == "openai" && !strings.HasPrefix(key, "sk-") {
			log.Warn("openai api key does not start with sk-, requests will probably be rejected")
		}
		chatModel, err := newChatModel(ctx, provider, provCfg, key, opts.MaxTokens)
		if err != nil {
			return nil, err
		}
		opts.ChatModel = chatModel
	} else {
		log.Warnf("no api key configured for provider %s, chat will use canned responses", provider)
	}

	// image generation and model listing only exist on the openai api
	if imgCfg, ok := cfg.Provider(cfg.Chat.ImageProvider); ok && cfg.Chat.ImageProvider == "openai" {
		clientCfg := goopenai.DefaultConfig(SanitizeCredential(imgCfg.APIKey))
		if imgCfg.BaseURL != "" {
			clientCfg.BaseURL = imgCfg.BaseURL
		}
		opts.OpenAI = goopenai.NewClientWithConfig(clientCfg)
	}
	return New(opts), nil
}

func newChatModel(ctx context.Context, provider string, provCfg config.ProviderConfig, key string, maxTokens int) (model.BaseChatModel, error) {
	switch provider {
	case "openai":
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  key,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai chat model: %w", err)
		}
		return m, nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		m, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini chat model: %w", err)
		}
		return m, nil
	case "claude":
		var baseURL *string
		if provCfg.BaseURL != "" {
			baseURL = &provCfg.BaseURL
		}
		m, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:    key,
			Model:     provCfg.Model,
			BaseURL:   baseURL,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init claude chat model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// DispatchText sends the fixed instruction and the user message as a two-turn exchange.
func (s *Service) DispatchText(ctx context.Context, message string, lang models.Language) (string, error) {
	if s.chatModel == nil {
		return "", broker.ErrCredentialMissing
	}
	input := []*schema.Message{
		schema.SystemMessage(SystemPrompt(lang)),
		schema.UserMessage(message),
	}
	resp, err := s.chatModel.Generate(ctx, input,
		model.WithMaxTokens(s.maxTokens),
		model.WithTemperature(temperature),
	)
	if err != nil {
		return "", classifyRemoteError(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", broker.ErrRemoteMalformedResponse
	}
	return strings.TrimSpace(resp.Content), nil
}

// DispatchImage requests exactly one image for the cleaned and framed prompt.
func (s *Service) DispatchImage(ctx context.Context, prompt string, lang models.Language) (string, error) {
	if s.openai == nil {
		return "", broker.ErrCredentialMissing
	}
	resp, err := s.openai.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         broker.FrameImagePrompt(prompt, lang),
		Model:          s.imageModel,
		N:              1,
		Size:           goopenai.CreateImageSize1024x1024,
		Quality:        goopenai.CreateImageQualityStandard,
		ResponseFormat: goopenai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", classifyRemoteError(err)
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return "", broker.ErrRemoteMalformedResponse
	}
	return resp.Data[0].URL, nil
}

// CheckCredential validates the text credential. Results are cached for a few minutes so that
// a burst of new sessions does not hit the models endpoint once each.
func (s *Service) CheckCredential(ctx context.Context) broker.CredentialStatus {
	s.mu.Lock()
	if s.status != nil && time.Since(s.checkedAt) < credentialTTL {
		status := *s.status
		s.mu.Unlock()
		return status
	}
	s.mu.Unlock()

	status := s.checkCredential(ctx)
	// transport problems say nothing about the key, so they are retried on the next session
	if !errors.Is(status.Err, broker.ErrRemoteUnavailable) {
		s.mu.Lock()
		s.status = &status
		s.checkedAt = time.Now()
		s.mu.Unlock()
	}
	return status
}

func (s *Service) checkCredential(ctx context.Context) broker.CredentialStatus {
	if s.chatModel == nil {
		return broker.CredentialStatus{Message: "No API key found in environment variables", Err: broker.ErrCredentialMissing}
	}
	if s.provider != "openai" || s.openai == nil {
		return broker.CredentialStatus{Valid: true, Message: "API key configured"}
	}
	list, err := s.openai.ListModels(ctx)
	if err != nil {
		err = classifyRemoteError(err)
		s.log.WithError(err).Warn("credential check failed")
		if errors.Is(err, broker.ErrCredentialInvalid) {
			return broker.CredentialStatus{Message: "Invalid API key", Err: err}
		}
		return broker.CredentialStatus{Message: "Could not reach the API", Err: err}
	}
	return broker.CredentialStatus{
		Valid:   true,
		Message: fmt.Sprintf("API key is valid (%d models available)", len(list.Models)),
	}
}

// classifyRemoteError maps transport and api failures onto the broker error taxonomy.
func classifyRemoteError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", broker.ErrCredentialInvalid, err)
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w", broker.ErrCredentialInvalid, err)
		}
	}
	return fmt.Errorf("%w: %w", broker.ErrRemoteUnavailable, err)
}

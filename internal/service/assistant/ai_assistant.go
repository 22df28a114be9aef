package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"docsummary/internal/config"
)

const (
	defaultAbstractTimeout = 30 * time.Second
	defaultMaxInputChars   = 12000
	abstractMaxTokens      = 512
)

// Abstracter asks a chat model for a short abstract of extracted text.
type Abstracter struct {
	chatModel     model.BaseChatModel
	timeout       time.Duration
	maxInputChars int
	logger        *slog.Logger
}

// NewAbstracter builds the chat model named by cfg.Provider. It returns
// nil, nil when no provider is configured.
func NewAbstracter(ctx context.Context, cfg config.AbstractConfig, providers map[string]config.ProviderConfig, logger *slog.Logger) (*Abstracter, error) {
	if cfg.Provider == "" {
		return nil, nil
	}
	provCfg, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", cfg.Provider)
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = provCfg.Model
	}
	chatModel, err := newChatModel(ctx, cfg.Provider, modelName, provCfg)
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Provider, err)
	}
	return NewAbstracterWithModel(chatModel, cfg, logger), nil
}

// NewAbstracterWithModel wraps an already built chat model.
func NewAbstracterWithModel(chatModel model.BaseChatModel, cfg config.AbstractConfig, logger *slog.Logger) *Abstracter {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultAbstractTimeout
	}
	maxChars := cfg.MaxInputChars
	if maxChars <= 0 {
		maxChars = defaultMaxInputChars
	}
	return &Abstracter{
		chatModel:     chatModel,
		timeout:       timeout,
		maxInputChars: maxChars,
		logger:        logger,
	}
}

func newChatModel(ctx context.Context, provider, modelName string, provCfg config.ProviderConfig) (model.BaseChatModel, error) {
	switch provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  provCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: abstractMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// Abstract returns a few sentences describing text. Empty text yields an
// empty abstract without calling the model.
func (a *Abstracter) Abstract(ctx context.Context, fileName, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if runes := []rune(text); len(runes) > a.maxInputChars {
		text = string(runes[:a.maxInputChars])
	}

	systemPrompt := "You are a helpful assistant that summarizes user provided documents. " +
		"Produce a concise abstract highlighting the key points. " +
		"Limit the abstract to 3 sentences and output only the abstract."
	userPrompt := fmt.Sprintf("Document name: %s\n\nDocument content:\n%s\n", fileName, text)
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()
	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate abstract: %w", err)
	}
	if resp == nil {
		return "", errors.New("generate abstract: empty response")
	}
	a.logger.Debug("abstract generated", "file", fileName, "took", time.Since(start))
	return strings.TrimSpace(resp.Content), nil
}

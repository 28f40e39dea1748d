package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
)

// Anthropic streams chat completions from the Claude Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// AnthropicOption configures an Anthropic client.
type AnthropicOption func(*anthropicConfig)

type anthropicConfig struct {
	model          string
	maxTokens      int64
	logger         *zap.Logger
	requestOptions []option.RequestOption
}

// WithModel sets the Claude model. Defaults to claude-sonnet-4.
func WithModel(model string) AnthropicOption {
	return func(c *anthropicConfig) {
		c.model = model
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int64) AnthropicOption {
	return func(c *anthropicConfig) {
		c.maxTokens = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) AnthropicOption {
	return func(c *anthropicConfig) {
		c.logger = logger
	}
}

// WithRequestOptions passes options through to the SDK client, e.g. a base URL.
func WithRequestOptions(opts ...option.RequestOption) AnthropicOption {
	return func(c *anthropicConfig) {
		c.requestOptions = append(c.requestOptions, opts...)
	}
}

// NewAnthropic creates a streaming client authenticated with apiKey.
func NewAnthropic(apiKey string, opts ...AnthropicOption) *Anthropic {
	cfg := &anthropicConfig{
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.requestOptions...)
	return &Anthropic{
		client:    anthropic.NewClient(reqOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		logger:    cfg.logger,
	}
}

// StreamChat implements Client.
func (a *Anthropic) StreamChat(ctx context.Context, messages []Message, system string) (<-chan Chunk, error) {
	if len(messages) == 0 {
		return nil, errors.New("llm: no messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  convertMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	out := make(chan Chunk)

	go func() {
		defer close(out)
		defer stream.Close()

		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			event := stream.Current()

			evt, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}

			var chunk Chunk
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				chunk = Chunk{Kind: KindText, Text: delta.Text}
			case anthropic.InputJSONDelta:
				chunk = Chunk{Kind: KindToolUse, Text: delta.PartialJSON}
			case anthropic.ThinkingDelta:
				chunk = Chunk{Kind: KindThinking, Text: delta.Thinking}
			default:
				continue
			}
			if !send(chunk) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			a.logger.Debug("anthropic stream failed", zap.String("model", a.model), zap.Error(err))
			send(Chunk{Kind: KindError, Err: err})
		}
	}()

	return out, nil
}

func convertMessages(messages []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			params = append(params, anthropic.NewAssistantMessage(block))
		} else {
			params = append(params, anthropic.NewUserMessage(block))
		}
	}
	return params
}

// Package extract asks a language model which parts of a conversation turn
// are worth keeping and parses its answer into an Extraction.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/llm"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 60 * time.Second

// maxLoggedReply caps how much of a bad reply ends up in the logs.
const maxLoggedReply = 200

// Extractor scores conversation turns for long-term relevance.
type Extractor struct {
	client  llm.Client
	system  string
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Extractor) {
		e.system = prompt
	}
}

// WithTimeout bounds each Extract call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.timeout = d
	}
}

// New creates an Extractor that talks to client.
func New(client llm.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:  client,
		system:  DefaultSystemPrompt,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract scores one turn. It never fails: any problem yields a defaulted
// Result whose Err says what went wrong.
func (e *Extractor) Extract(ctx context.Context, role core.Role, content, convContext string) Result {
	if strings.TrimSpace(content) == "" {
		return defaulted(ErrEmptyContent)
	}
	if e.client == nil {
		return defaulted(fmt.Errorf("%w: no model client", ErrStream))
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	messages := []llm.Message{{
		Role:    "user",
		Content: buildUserPrompt(role, content, convContext),
	}}

	reply, err := e.collect(ctx, messages)
	if err != nil {
		e.logger.Warn("memory extraction stream failed", zap.Error(err))
		return defaulted(err)
	}
	if strings.TrimSpace(reply) == "" {
		e.logger.Warn("memory extraction got an empty reply")
		return defaulted(ErrEmptyReply)
	}

	x, err := Parse(reply)
	if err != nil {
		e.logger.Warn("memory extraction reply could not be parsed",
			zap.Error(err),
			zap.String("reply", truncate(reply, maxLoggedReply)),
		)
		return defaulted(err)
	}

	e.logger.Debug("memory extracted",
		zap.Float64("importance", x.Importance),
		zap.Int("memories", len(x.Memories)),
	)
	return parsed(x)
}

// collect concatenates the text chunks of one streamed reply.
func (e *Extractor) collect(ctx context.Context, messages []llm.Message) (string, error) {
	chunks, err := e.client.StreamChat(ctx, messages, e.system)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStream, err)
	}

	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrStream, ctx.Err())
		case chunk, ok := <-chunks:
			if !ok {
				if err := ctx.Err(); err != nil {
					return "", fmt.Errorf("%w: %v", ErrStream, err)
				}
				return b.String(), nil
			}
			switch chunk.Kind {
			case llm.KindText:
				b.WriteString(chunk.Text)
			case llm.KindError:
				return "", fmt.Errorf("%w: %v", ErrStream, chunk.Err)
			}
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

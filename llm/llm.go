// Package llm defines the streaming chat interface the memory extractor talks
// to, and an Anthropic implementation of it.
package llm

import "context"

// Message is a single chat message sent to the model.
type Message struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the text of the message.
	Content string
}

// Kind classifies a streamed chunk.
type Kind int

const (
	// KindText is a fragment of the assistant's text reply.
	KindText Kind = iota

	// KindToolUse is a fragment of a tool-call argument payload.
	KindToolUse

	// KindThinking is a fragment of extended-thinking output.
	KindThinking

	// KindError carries a stream failure in Err. It is always the last chunk.
	KindError
)

// Chunk is one element of a streamed reply.
type Chunk struct {
	Kind Kind
	Text string
	Err  error
}

// Client streams a chat completion. The returned channel is closed when the
// reply is complete, the stream fails, or ctx is cancelled.
type Client interface {
	StreamChat(ctx context.Context, messages []Message, system string) (<-chan Chunk, error)
}

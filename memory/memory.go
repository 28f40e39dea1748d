package memory

import (
	"context"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory/extract"
	"github.com/becomeliminal/nim-memory/memory/index"
)

// Embedder converts text to embedding vectors.
// Implementations: hash.Embedder (testing, offline), onnx.Embedder (local
// model), cached.Embedder (wraps either).
//
// Vectors are expected to be unit length; the Store normalizes them anyway
// before they enter the index.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// EmbedderFactory loads the named model for the device the index was
// placed on. Open wraps any error it returns in ErrModelUnavailable.
type EmbedderFactory func(ctx context.Context, model string, device index.Device) (Embedder, error)

// HistorySource lists the stored conversation histories of a scope.
// Open imports every turn it has not seen yet.
type HistorySource interface {
	// ListHistories returns the histories stored for scope.
	ListHistories(ctx context.Context, scope string) ([]core.HistoryInfo, error)

	// GetHistory returns the entries of one history in order.
	GetHistory(ctx context.Context, scope, id string) ([]core.Message, error)
}

// Extractor decides whether a turn is worth remembering.
// extract.Extractor is the implementation backed by a language model.
type Extractor interface {
	// Extract never fails; problems come back as a defaulted Result.
	Extract(ctx context.Context, role core.Role, content, convContext string) extract.Result
}

// SummaryStore keeps the summaries an Extractor pulled out of stored turns.
// Implementations: chromem.SummaryStore.
type SummaryStore interface {
	// Add stores the memories extracted from one turn by role.
	Add(ctx context.Context, role core.Role, memories []extract.Memory) error

	// Search returns up to limit summaries closest to query, best first.
	Search(ctx context.Context, query string, limit int) ([]extract.Memory, error)

	// Close releases resources.
	Close() error
}

// SummaryFactory opens the summary store of one scope in dir, embedding
// with the scope's embedder.
type SummaryFactory func(ctx context.Context, dir string, embedder Embedder) (SummaryStore, error)

// Manager is what an agent loop talks to.
//
// The agent is opinionated about WHEN memory is used (retrieve before the
// model call, record after the reply). The Manager decides HOW:
//   - which past turns are relevant and how they are rendered
//   - which turns are worth storing
//
// Implementations: Registry.
type Manager interface {
	// Retrieve returns a context block for the user's message, or "" when
	// nothing relevant is stored.
	Retrieve(ctx context.Context, scope string, userMessage string) (string, error)

	// RecordConversation stores one exchange. Called after every successful
	// agent response with the user's message and the assistant's reply.
	RecordConversation(ctx context.Context, scope string, userMessage string, assistantResponse string) error

	// Close saves and releases every open scope.
	Close() error
}

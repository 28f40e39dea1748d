//go:build !onnx

package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cached"
	"github.com/becomeliminal/nim-memory/memory/embedder/hash"
	"github.com/becomeliminal/nim-memory/memory/index"
)

// embedderFactory uses the hashing embedder; builds with the onnx tag load
// the real model instead.
func (cfg *config) embedderFactory(logger *zap.Logger) memory.EmbedderFactory {
	return func(ctx context.Context, model string, device index.Device) (memory.Embedder, error) {
		logger.Info("using hashing embedder, build with -tags onnx for model embeddings",
			zap.String("model", model),
		)
		e, err := cached.New(hash.New(hash.DefaultDimensions))
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

//go:build onnx

package cli

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cached"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
	"github.com/becomeliminal/nim-memory/memory/index"
)

// embedderFactory loads <model-dir>/<model> with ONNX Runtime on the device
// the index was placed on.
func (cfg *config) embedderFactory(logger *zap.Logger) memory.EmbedderFactory {
	return func(ctx context.Context, model string, device index.Device) (memory.Embedder, error) {
		dir := filepath.Join(cfg.modelDir, model)
		e, err := onnx.New(onnx.Config{
			ModelPath:     filepath.Join(dir, "model.onnx"),
			TokenizerPath: filepath.Join(dir, "tokenizer.json"),
			LibraryPath:   cfg.onnxLibrary,
			Device:        device,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		c, err := cached.New(e)
		if err != nil {
			e.Close()
			return nil, err
		}
		return c, nil
	}
}

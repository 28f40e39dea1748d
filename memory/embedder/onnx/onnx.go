//go:build onnx

// Package onnx embeds text locally with a sentence-transformer model
// (all-MiniLM-L6-v2 by default) exported to ONNX.
//
// Building it needs the onnx build tag and the ONNX Runtime shared library
// at run time.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-memory/memory/index"
)

// maxSequence is the token window of MiniLM, [CLS] and [SEP] included.
const maxSequence = 128

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// LibraryPath is the ONNX Runtime shared library. Empty uses the
	// runtime's default lookup.
	LibraryPath string

	// Dimensions is the embedding vector size (default: 384 for all-MiniLM-L6-v2).
	Dimensions int

	// Device selects the execution provider. DeviceAccelerator runs the
	// model on CUDA, falling back to the CPU if the provider cannot be
	// attached.
	Device index.Device

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Embedder generates embeddings using ONNX Runtime.
type Embedder struct {
	// mu serializes Run; sessions are not documented as reentrant.
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tokenizer  *Tokenizer
	dimensions int
	device     index.Device
	logger     *zap.Logger
}

var (
	initOnce sync.Once
	initErr  error
)

// initRuntime loads the shared library once per process.
func initRuntime(libraryPath string) error {
	initOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// New loads the tokenizer and the model.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, errors.New("TokenizerPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}

	tokenizer, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, device, err := newSession(cfg.ModelPath, cfg.Device, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded embedding model",
		zap.String("model", cfg.ModelPath),
		zap.String("device", string(device)),
		zap.Int("dimensions", cfg.Dimensions),
	)
	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
		device:     device,
		logger:     logger,
	}, nil
}

var (
	inputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames = []string{"last_hidden_state"}
)

// newSession opens the model on the requested device. A CUDA failure is
// logged and the model is opened on the CPU instead.
func newSession(modelPath string, device index.Device, logger *zap.Logger) (*ort.DynamicAdvancedSession, index.Device, error) {
	if device == index.DeviceAccelerator {
		session, err := newCUDASession(modelPath)
		if err == nil {
			return session, index.DeviceAccelerator, nil
		}
		logger.Warn("failed to load embedding model on CUDA, using CPU", zap.Error(err))
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create ONNX session: %w", err)
	}
	return session, index.DeviceCPU, nil
}

func newCUDASession(modelPath string) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()

	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, fmt.Errorf("CUDA provider options: %w", err)
	}
	defer cuda.Destroy()

	if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
		return nil, fmt.Errorf("configure CUDA provider: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return nil, fmt.Errorf("attach CUDA provider: %w", err)
	}
	return ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
}

// Embed converts text to a unit-length embedding vector by mean pooling the
// token states of the model.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, mask, types := e.tokenizer.Encode(text, maxSequence)

	shape := ort.NewShape(1, int64(len(ids)))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typesTensor, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typesTensor.Destroy()

	outputs := []ort.Value{nil}
	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ONNX inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	vec, err := pool(tensor.GetData(), tensor.GetShape(), mask, e.dimensions)
	if err != nil {
		return nil, err
	}
	return index.Normalize(vec), nil
}

// pool reduces the model output to one vector. Output that is already
// pooled ([1, dims]) is copied; token states ([1, seq, dims]) are averaged
// over the attended tokens.
func pool(data []float32, shape ort.Shape, mask []int64, dims int) ([]float32, error) {
	switch len(shape) {
	case 2:
		if len(data) < dims {
			return nil, fmt.Errorf("output has %d values, want %d", len(data), dims)
		}
		vec := make([]float32, dims)
		copy(vec, data[:dims])
		return vec, nil
	case 3:
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		if shape[2] != int64(dims) {
			return nil, fmt.Errorf("hidden size %d, want %d", shape[2], dims)
		}
		seq := int(shape[1])
		vec := make([]float32, dims)
		var attended float32
		for i := 0; i < seq && i < len(mask); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			row := data[i*dims : (i+1)*dims]
			for j, v := range row {
				vec[j] += v
			}
		}
		if attended == 0 {
			return vec, nil
		}
		for j := range vec {
			vec[j] /= attended
		}
		return vec, nil
	default:
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Device returns where the model runs.
func (e *Embedder) Device() index.Device {
	return e.device
}

// Close releases ONNX resources.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}

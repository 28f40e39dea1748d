package index

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Device is a placement preference for an index.
type Device string

const (
	DeviceAuto        Device = "auto"
	DeviceCPU         Device = "cpu"
	DeviceAccelerator Device = "accelerator"
)

// ParseDevice accepts "auto", "cpu" and "accelerator" ("cuda" and "gpu" are
// accepted as aliases of the latter). An empty string means auto.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DeviceAuto, nil
	case "cpu":
		return DeviceCPU, nil
	case "accelerator", "cuda", "gpu":
		return DeviceAccelerator, nil
	default:
		return "", fmt.Errorf("unknown device %q", s)
	}
}

// Accelerator is the capability probe for device-resident indexes.
// It is passed in explicitly so callers and tests control what hardware the
// store believes it has.
type Accelerator interface {
	// Name identifies the accelerator in logs.
	Name() string

	// Available reports whether the platform and the index backend both
	// support the accelerator.
	Available() bool

	// NewIndex allocates an empty device-resident index.
	NewIndex(dim int) (Index, error)

	// Upload copies a host index onto the device.
	Upload(f *Flat) (Index, error)
}

// Transcoder is implemented by device-resident indexes that can copy
// themselves back into host memory for persistence.
type Transcoder interface {
	ToCPU() (*Flat, error)
}

// NoAccelerator is the probe for hosts without accelerator support.
type NoAccelerator struct{}

func (NoAccelerator) Name() string { return "none" }
func (NoAccelerator) Available() bool { return false }

func (NoAccelerator) NewIndex(int) (Index, error) {
	return nil, fmt.Errorf("no accelerator available")
}

func (NoAccelerator) Upload(*Flat) (Index, error) {
	return nil, fmt.Errorf("no accelerator available")
}

// Resolve turns a preference into a concrete device. Auto silently picks the
// CPU when no accelerator is available; an explicit accelerator request that
// cannot be honoured falls back to the CPU with a warning.
func Resolve(pref Device, acc Accelerator, logger *zap.Logger) Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	available := acc != nil && acc.Available()

	switch pref {
	case DeviceCPU:
		logger.Info("using CPU for vector index")
		return DeviceCPU
	case DeviceAccelerator:
		if !available {
			logger.Warn("accelerator requested but not available, falling back to CPU")
			return DeviceCPU
		}
	default:
		if !available {
			logger.Info("no accelerator support found, using CPU for vector index")
			return DeviceCPU
		}
	}
	logger.Info("using accelerator for vector index", zap.String("accelerator", acc.Name()))
	return DeviceAccelerator
}

// Create builds an empty index on the resolved device. Allocation failures on
// the accelerator downgrade to a CPU index; the returned Device is where the
// index actually lives.
func Create(dim int, dev Device, acc Accelerator, logger *zap.Logger) (Index, Device) {
	if dev == DeviceAccelerator && acc != nil {
		idx, err := acc.NewIndex(dim)
		if err == nil {
			return idx, DeviceAccelerator
		}
		if logger != nil {
			logger.Warn("failed to allocate accelerator index, falling back to CPU", zap.Error(err))
		}
	}
	return NewFlat(dim), DeviceCPU
}

// Place moves a loaded host index onto the resolved device, keeping it on the
// CPU if the upload fails.
func Place(f *Flat, dev Device, acc Accelerator, logger *zap.Logger) (Index, Device) {
	if dev == DeviceAccelerator && acc != nil {
		idx, err := acc.Upload(f)
		if err == nil {
			return idx, DeviceAccelerator
		}
		if logger != nil {
			logger.Warn("failed to upload index to accelerator, keeping it on CPU", zap.Error(err))
		}
	}
	return f, DeviceCPU
}

// Persist writes idx to path. Device-resident indexes are transcoded to a
// host index first; if that fails and the index can serialize itself, a
// direct save is attempted.
//
// The direct save writes whatever format the device index produces, which
// LoadFile may reject. A store that later fails to load it starts fresh.
func Persist(path string, idx Index, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch v := idx.(type) {
	case *Flat:
		return SaveFile(path, v)
	case Transcoder:
		host, err := v.ToCPU()
		if err == nil {
			return SaveFile(path, host)
		}
		logger.Warn("failed to copy accelerator index to host, trying direct save", zap.Error(err))
		wt, ok := idx.(io.WriterTo)
		if !ok {
			return fmt.Errorf("transcode index: %w", err)
		}
		if err := SaveFile(path, wt); err != nil {
			return fmt.Errorf("direct save: %w", err)
		}
		return nil
	case io.WriterTo:
		return SaveFile(path, v)
	default:
		return fmt.Errorf("index type %T cannot be persisted", idx)
	}
}

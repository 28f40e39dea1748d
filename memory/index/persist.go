package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// File layout, little-endian:
//
//	magic "NMVI" | version u16 | dim u32 | count u64 | count*dim float32 | xxhash64 u64
//
// The checksum covers every byte before it.
const (
	fileMagic   = "NMVI"
	fileVersion = uint16(1)
	headerSize  = 4 + 2 + 4 + 8
)

// WriteTo serializes the index in insertion order.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	digest := xxhash.New()
	bw := bufio.NewWriter(io.MultiWriter(w, digest))

	var header [headerSize]byte
	copy(header[:4], fileMagic)
	binary.LittleEndian.PutUint16(header[4:6], fileVersion)
	binary.LittleEndian.PutUint32(header[6:10], uint32(f.dim))
	binary.LittleEndian.PutUint64(header[10:18], uint64(f.Len()))
	if _, err := bw.Write(header[:]); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	var buf [4]byte
	for _, v := range f.data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := bw.Write(buf[:]); err != nil {
			return 0, fmt.Errorf("write vectors: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("write vectors: %w", err)
	}

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], digest.Sum64())
	if _, err := w.Write(sum[:]); err != nil {
		return 0, fmt.Errorf("write checksum: %w", err)
	}
	return int64(headerSize + 4*len(f.data) + 8), nil
}

// ReadFlat decodes an index written by WriteTo.
func ReadFlat(r io.Reader) (*Flat, error) {
	digest := xxhash.New()
	br := io.TeeReader(bufio.NewReader(r), digest)

	var header [headerSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}
	if string(header[:4]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, header[:4])
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	dim := int(binary.LittleEndian.Uint32(header[6:10]))
	count := binary.LittleEndian.Uint64(header[10:18])
	if dim <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrCorrupt, dim)
	}
	if count > math.MaxInt32/uint64(dim) {
		return nil, fmt.Errorf("%w: implausible vector count %d", ErrCorrupt, count)
	}

	data := make([]float32, int(count)*dim)
	var buf [4]byte
	for i := range data {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: read vectors: %v", ErrCorrupt, err)
		}
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
	}
	want := digest.Sum64()

	var sum [8]byte
	if _, err := io.ReadFull(br, sum[:]); err != nil {
		return nil, fmt.Errorf("%w: read checksum: %v", ErrCorrupt, err)
	}
	if got := binary.LittleEndian.Uint64(sum[:]); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return &Flat{dim: dim, data: data}, nil
}

// SaveFile writes the index to path through a temporary file in the same
// directory, so a reader never observes a half-written index.
func SaveFile(path string, w io.WriterTo) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := w.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// LoadFile reads an index file written by SaveFile.
func LoadFile(path string) (*Flat, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return ReadFlat(fh)
}

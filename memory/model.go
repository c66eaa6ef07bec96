package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"gitlab.com/stephen-fox/bootkit/checksum"
)

// ModelConfig configures a Model.
type ModelConfig struct {
	// Image is the memory that the target initially contains.
	Image *Image

	// OptAlgorithm is the checksum computed by the simulated
	// checksum-write primitive. ChecksumWrite fails if it
	// is not specified.
	OptAlgorithm checksum.Algorithm

	// OptByteOrder is the byte order used to store checksum
	// values. Big endian is used if unspecified.
	OptByteOrder binary.ByteOrder
}

// NewModel creates a new *Model whose memory initially matches
// the configured Image.
func NewModel(config ModelConfig) (*Model, error) {
	if config.Image == nil {
		return nil, fmt.Errorf("image cannot be nil")
	}

	model := &Model{
		image:   config.Image,
		alg:     config.OptAlgorithm,
		written: make(map[uint64]byte),
	}

	if config.OptAlgorithm != nil {
		order := config.OptByteOrder
		if order == nil {
			order = binary.BigEndian
		}

		codec, err := WordCodecFor(order, config.OptAlgorithm.Size())
		if err != nil {
			return nil, err
		}

		model.codec = codec
	}

	return model, nil
}

// Model simulates the memory of a target whose initial contents are an
// Image. Bytes written through the model shadow the image. Reading an
// address that is neither in the image nor previously written fails, as
// its contents on a real target are unknown.
type Model struct {
	image   *Image
	alg     checksum.Algorithm
	codec   WordCodec
	written map[uint64]byte
	ops     int
}

// Read returns n bytes starting at addr.
func (o *Model) Read(addr uint64, n uint64) ([]byte, error) {
	if n > math.MaxUint64-addr {
		return nil, fmt.Errorf("read of %d bytes at 0x%x exceeds the address space", n, addr)
	}

	out := make([]byte, n)

	for i := uint64(0); i < n; i++ {
		b, hasIt := o.written[addr+i]
		if hasIt {
			out[i] = b
			continue
		}

		if !o.image.Range().ContainsRange(Range{Start: addr + i, Len: 1}) {
			return nil, fmt.Errorf("address 0x%x is not in the image and was not written", addr+i)
		}

		out[i] = o.image.data[addr+i-o.image.base]
	}

	return out, nil
}

// Write stores p at addr.
func (o *Model) Write(addr uint64, p []byte) error {
	if uint64(len(p)) > math.MaxUint64-addr {
		return fmt.Errorf("write of %d bytes at 0x%x exceeds the address space", len(p), addr)
	}

	for i, b := range p {
		o.written[addr+uint64(i)] = b
	}

	return nil
}

// NumOperations returns the number of primitives executed by the model.
func (o *Model) NumOperations() int {
	return o.ops
}

// ChecksumWrite computes the checksum of the length bytes at src
// and stores the result at dst.
func (o *Model) ChecksumWrite(ctx context.Context, src uint64, length uint64, dst uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if o.alg == nil {
		return fmt.Errorf("checksum algorithm is not configured")
	}

	data, err := o.Read(src, length)
	if err != nil {
		return fmt.Errorf("failed to read checksum source - %w", err)
	}

	o.ops++

	return o.Write(dst, o.codec.Encode(o.alg.Sum(data)))
}

// CopyBlock copies length bytes from src to dst. The source is read in
// full before the destination is written.
func (o *Model) CopyBlock(ctx context.Context, src uint64, length uint64, dst uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := o.Read(src, length)
	if err != nil {
		return fmt.Errorf("failed to read copy source - %w", err)
	}

	o.ops++

	return o.Write(dst, data)
}

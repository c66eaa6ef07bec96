package memory

import (
	"fmt"
	"math"
)

// NewImageOrExit calls NewImage, invoking DefaultExitFn if an error occurs.
func NewImageOrExit(base uint64, data []byte) *Image {
	img, err := NewImage(base, data)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to create image - %w", err))
	}
	return img
}

// NewImage creates a new *Image containing a copy of data. The first byte
// of data is located at the base address.
func NewImage(base uint64, data []byte) (*Image, error) {
	if uint64(len(data)) > math.MaxUint64-base {
		return nil, fmt.Errorf("image of %d bytes at 0x%x exceeds the address space",
			len(data), base)
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	return &Image{
		base: base,
		data: cp,
	}, nil
}

// Image is an immutable, captured region of target memory.
type Image struct {
	base uint64
	data []byte
}

// Base returns the address of the first byte of the image.
func (o *Image) Base() uint64 {
	return o.base
}

// Len returns the number of bytes in the image.
func (o *Image) Len() int {
	return len(o.data)
}

// End returns the address immediately after the last byte of the image.
func (o *Image) End() uint64 {
	return o.base + uint64(len(o.data))
}

// Range returns the address range covered by the image.
func (o *Image) Range() Range {
	return Range{Start: o.base, Len: uint64(len(o.data))}
}

// OffsetToAddress converts an offset into the image into an address.
func (o *Image) OffsetToAddress(offset int) uint64 {
	return o.base + uint64(offset)
}

// Contains returns true if the entire range is within the image.
func (o *Image) Contains(r Range) bool {
	return o.Range().ContainsRange(r)
}

// Bytes returns the image's contents. The returned slice
// must not be modified.
func (o *Image) Bytes() []byte {
	return o.data
}

// Slice returns the image bytes in the specified address range.
func (o *Image) Slice(r Range) ([]byte, error) {
	if !o.Contains(r) {
		return nil, fmt.Errorf("range %s is not within image %s", r, o.Range())
	}

	start := r.Start - o.base

	return o.data[start : start+r.Len], nil
}

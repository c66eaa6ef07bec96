package hunter

import (
	"bytes"
	"context"
	"sort"

	"gitlab.com/stephen-fox/bootkit/checksum"
	"gitlab.com/stephen-fox/bootkit/memory"
)

const (
	// cancelCheckInterval is the number of windows hashed
	// between checks for cancellation.
	cancelCheckInterval = 4096

	// minChunkLen is the smallest number of offsets
	// scanned by a single worker.
	minChunkLen = 16 * 1024
)

// candidate is a window of the image whose checksum
// produces a needed value.
type candidate struct {
	offset int
	length int

	// distance is the absolute difference between the window's
	// address and the target address.
	distance uint64
}

// less orders candidates by preference: closest to the target
// address, then shortest, then lowest offset.
func (o candidate) less(other candidate) bool {
	if o.distance != other.distance {
		return o.distance < other.distance
	}
	if o.length != other.length {
		return o.length < other.length
	}
	return o.offset < other.offset
}

// bucket holds up to a fixed number of candidates, most preferred first.
type bucket []candidate

// insert adds c to the bucket if it is preferred over one of the
// capacity candidates already retained. Because the order is total,
// the retained set does not depend on insertion order.
func (o bucket) insert(c candidate, capacity int) bucket {
	i := sort.Search(len(o), func(i int) bool {
		return c.less(o[i])
	})
	if i >= capacity {
		return o
	}

	if len(o) < capacity {
		o = append(o, candidate{})
	}

	copy(o[i+1:], o[i:len(o)-1])
	o[i] = c

	return o
}

type reverseLookupConfig struct {
	image      *memory.Image
	alg        checksum.Algorithm
	codec      memory.WordCodec
	targetAddr uint64
	minWidth   int
	maxWidth   int
	capacity   int
	workers    int

	// needs contains the checksum values worth recording.
	needs map[uint64]struct{}

	// optPrefix, if non-nil, collects candidates whose stored
	// value begins with these bytes.
	optPrefix []byte
}

// reverseLookup maps checksum values to image windows producing them.
// It is read-only once built.
type reverseLookup struct {
	buckets map[uint64]bucket
	prefix  bucket
	windows int
}

func (o *reverseLookup) merge(other *reverseLookup, capacity int) {
	for value, b := range other.buckets {
		merged := o.buckets[value]
		for _, c := range b {
			merged = merged.insert(c, capacity)
		}
		o.buckets[value] = merged
	}

	for _, c := range other.prefix {
		o.prefix = o.prefix.insert(c, capacity)
	}

	o.windows += other.windows
}

func (o *reverseLookup) numCandidates() int {
	num := len(o.prefix)
	for _, b := range o.buckets {
		num += len(b)
	}
	return num
}

// buildReverseLookup computes the checksum of every window of the image
// with a length in [minWidth, maxWidth], recording the windows that
// produce needed values. The image is split into chunks that are
// scanned in parallel and merged.
func buildReverseLookup(ctx context.Context, config reverseLookupConfig) (*reverseLookup, error) {
	table := &reverseLookup{
		buckets: make(map[uint64]bucket),
	}

	numOffsets := config.image.Len() - config.minWidth + 1
	if numOffsets <= 0 {
		return table, nil
	}

	chunkLen := (numOffsets + config.workers - 1) / config.workers
	if chunkLen < minChunkLen {
		chunkLen = minChunkLen
	}

	numChunks := (numOffsets + chunkLen - 1) / chunkLen

	partials, err := resolveOrdered(ctx, numChunks, config.workers, func(ctx context.Context, i int) (*reverseLookup, error) {
		start := i * chunkLen
		end := start + chunkLen
		if end > numOffsets {
			end = numOffsets
		}

		return scanChunk(ctx, config, start, end)
	})
	if err != nil {
		return nil, err
	}

	for _, partial := range partials {
		table.merge(partial, config.capacity)
	}

	return table, nil
}

func scanChunk(ctx context.Context, config reverseLookupConfig, start int, end int) (*reverseLookup, error) {
	table := &reverseLookup{
		buckets: make(map[uint64]bucket),
	}

	data := config.image.Bytes()
	base := config.image.Base()
	h := config.alg.New()
	digest := make([]byte, 0, config.alg.Size())

	for offset := start; offset < end; offset++ {
		maxLen := config.maxWidth
		if remaining := len(data) - offset; remaining < maxLen {
			maxLen = remaining
		}

		distance := absDiff(base+uint64(offset), config.targetAddr)

		h.Reset()
		h.Write(data[offset : offset+config.minWidth-1])

		for length := config.minWidth; length <= maxLen; length++ {
			if table.windows%cancelCheckInterval == 0 && ctx.Err() != nil {
				return nil, ctx.Err()
			}

			h.Write(data[offset+length-1 : offset+length])
			digest = h.Sum(digest[:0])

			value := digestValue(digest)
			table.windows++

			c := candidate{
				offset:   offset,
				length:   length,
				distance: distance,
			}

			if _, needed := config.needs[value]; needed {
				table.buckets[value] = table.buckets[value].insert(c, config.capacity)
			}

			if config.optPrefix != nil && bytes.HasPrefix(config.codec.Encode(value), config.optPrefix) {
				table.prefix = table.prefix.insert(c, config.capacity)
			}
		}
	}

	return table, nil
}

// digestValue interprets a digest as a big endian integer.
func digestValue(digest []byte) uint64 {
	var value uint64
	for _, b := range digest {
		value = value<<8 | uint64(b)
	}
	return value
}

func absDiff(a uint64, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

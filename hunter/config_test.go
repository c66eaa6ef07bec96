package hunter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	config := DefaultReverseChecksumConfig()

	err := DecodeConfig(map[string]interface{}{
		"max_iterations":          "0x100",
		"worker_count":            2,
		"algorithm":               "crc16-ccitt",
		"max_candidates_per_word": "3",
		"strict_length":           false,
	}, &config)
	require.NoError(t, err)

	assert.Equal(t, 0x100, config.MaxIterations)
	assert.Equal(t, 2, config.WorkerCount)
	assert.Equal(t, "crc16-ccitt", config.Algorithm)
	assert.Equal(t, 3, config.MaxCandidatesPerWord)
	assert.False(t, config.StrictLength)
	assert.Equal(t, DefaultWindowWidth, config.WindowWidth)
}

func TestDecodeConfig_UnknownKey(t *testing.T) {
	config := DefaultContiguousMatchConfig()

	err := DecodeConfig(map[string]interface{}{
		"window_width": 4,
	}, &config)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestDecodeConfig_BadValue(t *testing.T) {
	config := DefaultContiguousMatchConfig()

	err := DecodeConfig(map[string]interface{}{
		"max_copy_length": "lots",
	}, &config)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestLoadConfigFile(t *testing.T) {
	config := DefaultContiguousMatchConfig()

	err := LoadConfigFile(strings.NewReader("max_copy_length: 64\nworker_count: 1\n"), &config)
	require.NoError(t, err)

	assert.Equal(t, 64, config.MaxCopyLength)
	assert.Equal(t, 1, config.WorkerCount)
	assert.Equal(t, DefaultMaxIterations, config.MaxIterations)
}

func TestLoadConfigFile_Empty(t *testing.T) {
	config := DefaultContiguousMatchConfig()

	err := LoadConfigFile(strings.NewReader(""), &config)
	require.NoError(t, err)

	assert.Equal(t, DefaultContiguousMatchConfig(), config)
}

func TestLoadConfigFile_NotAMapping(t *testing.T) {
	config := DefaultContiguousMatchConfig()

	err := LoadConfigFile(strings.NewReader("- a\n- b\n"), &config)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

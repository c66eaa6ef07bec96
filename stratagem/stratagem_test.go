package stratagem_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/stephen-fox/bootkit/stratagem"
)

func newTestStratagem(t *testing.T) *stratagem.Stratagem {
	t.Helper()

	s, err := stratagem.New(stratagem.Config{
		Generator:     "reverse-checksum",
		PayloadName:   "stage1.bin",
		TargetAddress: 0x87800000,
		Parameters: map[string]interface{}{
			"algorithm":     "crc32",
			"byte_order":    "big",
			"word_width":    4,
			"strict_length": true,
			"probes":        uint64(1 << 63),
			"hex_looking":   "0x10",
		},
		Operations: []stratagem.Operation{
			stratagem.ChecksumWrite{SourceAddress: 0x80001234, SourceLength: 4, DestAddress: 0x87800000},
			stratagem.CopyBlock{SourceAddress: 0x80004000, Length: 12, DestAddress: 0x87800004},
			stratagem.ChecksumWrite{SourceAddress: 0, SourceLength: 0x100, DestAddress: 0xffffffffffffff00},
		},
	})
	require.NoError(t, err)

	return s
}

func equalStratagems(t *testing.T, exp *stratagem.Stratagem, got *stratagem.Stratagem) {
	t.Helper()

	if diff := cmp.Diff(exp, got, cmp.AllowUnexported(stratagem.Stratagem{})); diff != "" {
		t.Fatalf("stratagem mismatch (-exp +got):\n%s", diff)
	}
}

func TestStratagem_RoundTrip(t *testing.T) {
	s := newTestStratagem(t)

	raw, err := s.MarshalText()
	require.NoError(t, err)

	decoded, err := stratagem.Unmarshal(raw)
	require.NoError(t, err)

	equalStratagems(t, s, decoded)

	again, err := decoded.MarshalText()
	require.NoError(t, err)

	assert.Equal(t, string(raw), string(again))
}

func TestStratagem_RoundTripEmptyPayloadName(t *testing.T) {
	s, err := stratagem.New(stratagem.Config{
		Generator:     "contiguous-match",
		TargetAddress: 0x1000,
		Operations: []stratagem.Operation{
			stratagem.CopyBlock{SourceAddress: 0x50, Length: 16, DestAddress: 0x1000},
		},
	})
	require.NoError(t, err)

	raw, err := s.MarshalText()
	require.NoError(t, err)

	decoded, err := stratagem.Read(strings.NewReader(string(raw)))
	require.NoError(t, err)

	equalStratagems(t, s, decoded)
}

func TestUnmarshal_AnyBase(t *testing.T) {
	doc := `version: 1
generator: manual
target_address: 4096
operations:
  - op: copy_block
    source_address: 0o20
    length: 0b101
    dest_address: 0x1000
`

	s, err := stratagem.Unmarshal([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, uint64(0x1000), s.TargetAddress())
	assert.Equal(t, []stratagem.Operation{
		stratagem.CopyBlock{SourceAddress: 16, Length: 5, DestAddress: 0x1000},
	}, s.Operations())
}

func TestUnmarshal_Malformed(t *testing.T) {
	valid := `version: 1
generator: manual
target_address: 0x1000
operations:
  - op: copy_block
    source_address: 0x0
    length: 4
    dest_address: 0x1000
`

	_, err := stratagem.Unmarshal([]byte(valid))
	require.NoError(t, err)

	tests := map[string]string{
		"Empty":             ``,
		"NotYAML":           "\t: : [",
		"MissingVersion":    strings.Replace(valid, "version: 1\n", "", 1),
		"UnknownVersion":    strings.Replace(valid, "version: 1", "version: 99", 1),
		"MissingGenerator":  strings.Replace(valid, "generator: manual\n", "", 1),
		"MissingTarget":     strings.Replace(valid, "target_address: 0x1000\n", "", 1),
		"BadTarget":         strings.Replace(valid, "target_address: 0x1000", "target_address: nope", 1),
		"UnknownTopLevel":   valid + "extra: 1\n",
		"UnknownOperation":  strings.Replace(valid, "copy_block", "memory_write", 1),
		"MissingOp":         strings.Replace(valid, "  - op: copy_block\n    source_address", "  - source_address", 1),
		"MissingField":      strings.Replace(valid, "    length: 4\n", "", 1),
		"UnknownField":      strings.Replace(valid, "    length: 4\n", "    length: 4\n    width: 4\n", 1),
		"BadField":          strings.Replace(valid, "length: 4", "length: -4", 1),
		"NoOperations":      strings.SplitN(valid, "operations:", 2)[0] + "operations: []\n",
		"NonScalarParam":    valid + "parameters:\n  nested:\n    a: 1\n",
		"FloatParam":        valid + "parameters:\n  ratio: 0.5\n",
		"NonScalarField":    strings.Replace(valid, "length: 4", "length: [4]", 1),
		"OverflowingSource": strings.Replace(valid, "source_address: 0x0", "source_address: 0xffffffffffffffff", 1),
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := stratagem.Unmarshal([]byte(doc))
			assert.ErrorIs(t, err, stratagem.ErrMalformedStratagem)
			assert.Nil(t, s)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	op := stratagem.CopyBlock{Length: 1}

	_, err := stratagem.New(stratagem.Config{Operations: []stratagem.Operation{op}})
	assert.Error(t, err)

	_, err = stratagem.New(stratagem.Config{Generator: "x"})
	assert.Error(t, err)

	_, err = stratagem.New(stratagem.Config{Generator: "x", Operations: []stratagem.Operation{nil}})
	assert.Error(t, err)

	_, err = stratagem.New(stratagem.Config{
		Generator:  "x",
		Operations: []stratagem.Operation{op},
		Parameters: map[string]interface{}{"bad": []int{1}},
	})
	assert.Error(t, err)
}

func TestStratagem_Immutable(t *testing.T) {
	s := newTestStratagem(t)

	ops := s.Operations()
	ops[0] = stratagem.CopyBlock{}

	params := s.Parameters()
	params["algorithm"] = "adler32"

	alg, _ := s.StringParameter("algorithm")
	assert.Equal(t, "crc32", alg)
	assert.Equal(t, stratagem.ChecksumWriteKind, s.Operations()[0].Kind())

	renamed := s.WithPayloadName("other.bin")
	assert.Equal(t, "other.bin", renamed.PayloadName())
	assert.Equal(t, "stage1.bin", s.PayloadName())
	assert.Equal(t, s.Operations(), renamed.Operations())
}

func TestRegisterKind_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		stratagem.RegisterKind(stratagem.CopyBlockKind, nil)
	})

	assert.Equal(t, []stratagem.Kind{stratagem.ChecksumWriteKind, stratagem.CopyBlockKind},
		stratagem.Kinds())
}

// Package checksum provides the checksum algorithms that a target's
// checksum command may compute over a source range.
//
// Each Algorithm produces a fixed-width value. The value of a digest is
// its big-endian interpretation, matching the byte order that Go's hash
// implementations use for Sum. How the target stores that value in memory
// is a separate concern (see memory.WordCodec).
package checksum

import (
	"fmt"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"sort"
)

const (
	CRC32      = "crc32"
	CRC32C     = "crc32c"
	Adler32    = "adler32"
	CRC16CCITT = "crc16-ccitt"
)

// Algorithm describes a checksum function.
type Algorithm interface {
	// Name returns the identifier used in configurations
	// and in serialized Stratagems.
	Name() string

	// Size returns the width of the checksum value in bytes.
	Size() int

	// New returns a hash.Hash computing the checksum.
	New() hash.Hash

	// Sum returns the checksum of p.
	Sum(p []byte) uint64
}

var registry = map[string]Algorithm{
	CRC32: hash32Algorithm{
		name: CRC32,
		newFn: func() hash.Hash32 {
			return crc32.NewIEEE()
		},
		sumFn: crc32.ChecksumIEEE,
	},
	CRC32C: hash32Algorithm{
		name: CRC32C,
		newFn: func() hash.Hash32 {
			return crc32.New(castagnoli)
		},
		sumFn: func(p []byte) uint32 {
			return crc32.Checksum(p, castagnoli)
		},
	},
	Adler32: hash32Algorithm{
		name:  Adler32,
		newFn: adler32.New,
		sumFn: adler32.Checksum,
	},
	CRC16CCITT: crc16Algorithm{},
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Lookup returns the Algorithm with the specified name.
func Lookup(name string) (Algorithm, error) {
	alg, hasIt := registry[name]
	if !hasIt {
		return nil, fmt.Errorf("unknown checksum algorithm: %q (supported: %s)",
			name, supportedStr())
	}

	return alg, nil
}

// Names returns the names of all supported algorithms, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func supportedStr() string {
	var str string
	for i, name := range Names() {
		if i > 0 {
			str += ", "
		}
		str += "'" + name + "'"
	}
	return str
}

type hash32Algorithm struct {
	name  string
	newFn func() hash.Hash32
	sumFn func([]byte) uint32
}

func (o hash32Algorithm) Name() string {
	return o.name
}

func (o hash32Algorithm) Size() int {
	return 4
}

func (o hash32Algorithm) New() hash.Hash {
	return o.newFn()
}

func (o hash32Algorithm) Sum(p []byte) uint64 {
	return uint64(o.sumFn(p))
}

package checksum

import (
	"hash"

	"github.com/sigurn/crc16"
)

// xmodemTable is CRC-16/XMODEM (polynomial 0x1021, initial value 0),
// the variant implemented by U-Boot's crc16_ccitt with a zero seed.
var xmodemTable = crc16.MakeTable(crc16.CRC16_XMODEM)

type crc16Algorithm struct{}

func (crc16Algorithm) Name() string {
	return CRC16CCITT
}

func (crc16Algorithm) Size() int {
	return 2
}

func (crc16Algorithm) New() hash.Hash {
	return crc16Digest{Hash16: crc16.New(xmodemTable)}
}

func (crc16Algorithm) Sum(p []byte) uint64 {
	return uint64(crc16.Checksum(p, xmodemTable))
}

// crc16Digest stores the checksum big endian, like the
// hash/crc32 and hash/adler32 digests.
type crc16Digest struct {
	crc16.Hash16
}

func (o crc16Digest) Sum(b []byte) []byte {
	crc := o.Sum16()
	return append(b, byte(crc>>8), byte(crc))
}

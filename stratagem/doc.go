// Package stratagem provides Stratagems: portable, replayable plans that
// reproduce a payload in a target's memory using only the target's
// restricted primitives.
//
// A Stratagem is an ordered list of Operations plus metadata describing
// how it was produced. Stratagems are data. They contain only addresses
// and lengths visible to the target, and can be saved, reviewed and
// replayed at a later time by a Player.
//
// # Serialized form
//
// Stratagems are serialized as YAML documents:
//
//	version: 1
//	generator: reverse-checksum
//	payload: stage1.bin
//	target_address: 0x87800000
//	parameters:
//	  algorithm: crc32
//	  byte_order: big
//	operations:
//	  - op: checksum_write
//	    source_address: 0x80001234
//	    source_length: 4
//	    dest_address: 0x87800000
//
// Addresses are written in hexadecimal. Integer fields may be written
// in any base understood by strconv.ParseUint with a base of zero.
package stratagem

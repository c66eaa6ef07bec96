// Package memory models the memory of a bootloader target.
//
// An Image is a captured region of target memory (for example, a dump of
// flash or of the bootloader's relocated code) together with the address
// it was captured from. Hunters search an Image for data that the target's
// restricted primitives can use as a source.
//
// A Model simulates a target whose memory initially matches an Image.
// It implements the checksum-write and copy-block primitives, which makes
// it possible to replay a Stratagem on the host and check its result
// before touching real hardware.
//
// # Byte order
//
// Targets store checksum results using either big or little endian byte
// order. For example, U-Boot's "crc32" command stores the digest in
// big endian order, while older "crc" implementations stored the value
// using the CPU's native order. A WordCodec converts between values and
// the bytes that a target writes to memory.
package memory

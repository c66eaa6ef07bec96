// Package hunter synthesizes Stratagems.
//
// A Hunter searches a captured memory Image for data that a target's
// restricted primitives can use to reproduce a payload, and describes
// the result as a Stratagem. Two strategies are provided:
//
//   - ReverseChecksumHunter expresses the payload as a sequence of
//     checksum-write operations. For every payload word, it finds a
//     window in the image whose checksum equals that word.
//   - ContiguousMatchHunter covers the payload with as few copy-block
//     operations as possible, using the longest runs of payload bytes
//     that already exist in the image.
//
// Searches are bounded by an iteration budget. Failing to find a result
// within the budget is a normal outcome reported by ErrResultNotFound.
// Callers may retry with a larger budget or a different Hunter.
package hunter

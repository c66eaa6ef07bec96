// Package bootkit provides functionality for writing arbitrary data into
// the memory of a target that only exposes constrained primitives, such
// as a boot loader shell that can checksum a memory region and store the
// digest, or copy one region to another.
//
// APIs are separated into subpackages, and documented accordingly:
// hunter searches a captured memory image for a plan (a Stratagem) that
// reproduces a payload, stratagem stores and replays plans, and memory
// simulates a target for verification.
//
// For scripting convenience, "OrExit" functions and methods are provided.
// Any errors encountered by these functions are treated as fatal. In such
// cases, an exit handler function is invoked.
package bootkit

// Package conv decodes payloads written in the textual forms that
// shellcode and firmware snippets are usually shared in.
package conv

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// RawFormat is the payload's bytes, unmodified.
	RawFormat Format = "raw"

	// HexFormat is a hex string, optionally prefixed with "0x".
	// Whitespace is ignored.
	HexFormat Format = "hex"

	// CArrayFormat is the contents of a C array or string literal
	// (e.g., "\x31\xc0" or {0x31, 0xc0}). C comments are ignored.
	CArrayFormat Format = "c"
)

// Format is the textual form of a payload.
type Format string

// Formats returns the supported formats.
func Formats() []Format {
	return []Format{RawFormat, HexFormat, CArrayFormat}
}

// DecodePayload reads a payload of the specified format from r.
func DecodePayload(r io.Reader, format Format) ([]byte, error) {
	switch format {
	case RawFormat, "":
		return io.ReadAll(r)
	case HexFormat:
		return decodeHexString(r)
	case CArrayFormat:
		return HexArrayToBytes(r)
	default:
		return nil, fmt.Errorf("unknown payload format: %q", format)
	}
}

func decodeHexString(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	str := strings.Join(strings.Fields(string(raw)), "")
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")

	decoded, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("failed to hex decode payload - %w", err)
	}

	return decoded, nil
}

// HexArrayToBytes converts the contents of a C array of hex-encoded
// bytes to a []byte. C comments are skipped, which allows parsing
// disassembly listings that annotate each instruction.
//
// Both "\x31\xc0" and {0x31, 0xc0} styles are understood.
func HexArrayToBytes(source io.Reader) ([]byte, error) {
	src := bufio.NewReader(source)
	out := bytes.NewBuffer(nil)
	var pair []byte

	for {
		b, err := src.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read next byte from reader - %w", err)
		}

		switch {
		case b == '/':
			err = skipComment(src)
			if err != nil {
				return nil, err
			}

			continue
		case b == '0' && len(pair) == 0:
			next, err := src.Peek(1)
			if err == nil && (next[0] == 'x' || next[0] == 'X') {
				_, _ = src.ReadByte()
				continue
			}
		case !isHexChar(b):
			if len(pair) != 0 {
				return nil, fmt.Errorf("odd number of hex characters before '%c'", b)
			}

			continue
		}

		pair = append(pair, b)

		if len(pair) == 2 {
			var decoded [1]byte

			_, err = hex.Decode(decoded[:], pair)
			if err != nil {
				return nil, fmt.Errorf("failed to hex-decode byte - %w", err)
			}

			out.WriteByte(decoded[0])
			pair = pair[:0]
		}
	}

	if len(pair) != 0 {
		return nil, errors.New("odd number of hex characters at end of input")
	}

	return out.Bytes(), nil
}

// skipComment discards the remainder of a C comment. The leading
// '/' must have been read already.
func skipComment(src *bufio.Reader) error {
	second, err := src.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read second start of comment char - %w", err)
	}

	switch second {
	case '/':
		_, err = src.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to find end of line comment - %w", err)
		}

		return nil
	case '*':
		for {
			_, err = src.ReadBytes('*')
			if err != nil {
				return fmt.Errorf("failed to find corresponding '*/' end of comment - %w", err)
			}

			next, err := src.Peek(1)
			if err != nil {
				return fmt.Errorf("failed to find corresponding '*/' end of comment - %w", err)
			}

			if next[0] == '/' {
				_, _ = src.ReadByte()
				return nil
			}
		}
	default:
		return fmt.Errorf("unknown second start of comment char '%c'", second)
	}
}

func isHexChar(b byte) bool {
	return (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F') || (b >= '0' && b <= '9')
}

// Package pattern generates byte patterns with predictable properties.
package pattern

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
)

// maxDeBruijnLen bounds the size of a generated sequence.
const maxDeBruijnLen = 1 << 28

// DefaultExitFn is invoked by methods ending in the "OrExit"
// suffix when an error occurs.
var DefaultExitFn = func(err error) {
	log.Fatalln(err)
}

// DeBruijn generates a de Bruijn sequence: a byte string in which every
// possible string of Order symbols from Alphabet occurs exactly once as
// a window. The generated sequence includes Order-1 trailing symbols so
// that windows do not need to wrap around.
//
// For example, a sequence of order 2 over all 256 byte values is 65537
// bytes long, and each of its 4 byte windows is unique. Such sequences
// make convenient synthetic memory images, as every window's content
// identifies its offset.
//
// This code is heavily based on work by D3Ext:
// https://gist.github.com/D3Ext/845bdc6a22bbdd50fe409d78b7d59b96
type DeBruijn struct {
	// Alphabet is the set of symbols to use. All 256 byte
	// values are used if unspecified.
	Alphabet []byte

	// Order is the length of the unique windows.
	Order int

	// OptLogger logs each chunk written by WriteToN if specified.
	OptLogger *log.Logger

	seq      []byte
	pos      int
	numCalls int
}

// WriteToNOrExit calls WriteToN and calls DefaultExitFn if an error occurs.
func (o *DeBruijn) WriteToNOrExit(w io.Writer, n int) {
	err := o.WriteToN(w, n)
	if err != nil {
		DefaultExitFn(fmt.Errorf("pattern.debruijn: failed to write chunk number %d of size %d - %w",
			o.numCalls, n, err))
	}
}

// WriteToN writes the next n bytes of the sequence to w.
// Subsequent calls to WriteToN resume the sequence.
func (o *DeBruijn) WriteToN(w io.Writer, n int) error {
	if n <= 0 {
		return errors.New("n is less than or equal to zero")
	}

	err := o.init()
	if err != nil {
		return err
	}

	if n > len(o.seq)-o.pos {
		return fmt.Errorf("only %d byte(s) of the %d byte sequence remain",
			len(o.seq)-o.pos, len(o.seq))
	}

	chunk := o.seq[o.pos : o.pos+n]

	if o.OptLogger != nil {
		o.OptLogger.Printf("pattern chunk %d: offset %d, %d byte(s)",
			o.numCalls, o.pos, n)
	}

	_, err = w.Write(chunk)
	if err != nil {
		return err
	}

	o.pos += n
	o.numCalls++

	return nil
}

// Bytes returns a copy of the entire sequence.
func (o *DeBruijn) Bytes() ([]byte, error) {
	err := o.init()
	if err != nil {
		return nil, err
	}

	return bytes.Clone(o.seq), nil
}

// Len returns the length of the sequence.
func (o *DeBruijn) Len() (int, error) {
	err := o.init()
	if err != nil {
		return 0, err
	}

	return len(o.seq), nil
}

func (o *DeBruijn) init() error {
	if o.seq != nil {
		return nil
	}

	alphabet := o.Alphabet
	if len(alphabet) == 0 {
		alphabet = make([]byte, 256)
		for i := range alphabet {
			alphabet[i] = byte(i)
		}
	}

	if o.Order <= 0 {
		return errors.New("order must be greater than zero")
	}

	k := len(alphabet)
	total := 1
	for i := 0; i < o.Order; i++ {
		total *= k
		if total > maxDeBruijnLen {
			return fmt.Errorf("a sequence of order %d over %d symbols exceeds %d bytes",
				o.Order, k, maxDeBruijnLen)
		}
	}

	n := o.Order
	a := make([]int, n+1)
	seq := make([]byte, 0, total+n-1)

	var db func(t, p int)
	db = func(t, p int) {
		if t > n {
			if n%p == 0 {
				for _, i := range a[1 : p+1] {
					seq = append(seq, alphabet[i])
				}
			}
			return
		}

		a[t] = a[t-p]
		db(t+1, p)

		for j := a[t-p] + 1; j < k; j++ {
			a[t] = j
			db(t+1, t)
		}
	}

	db(1, 1)

	// Append the first Order-1 symbols so that every
	// window is available without wrapping around.
	seq = append(seq, seq[:n-1]...)

	o.seq = seq

	return nil
}

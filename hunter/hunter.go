package hunter

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gitlab.com/stephen-fox/bootkit/stratagem"
)

var (
	// ErrResultNotFound is returned when no operation sequence that
	// reproduces the payload could be found within the search budget.
	ErrResultNotFound = errors.New("hunter result not found")

	// ErrInvalidConfiguration is returned for out-of-range or unknown
	// configuration values and for invalid search arguments.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrCancelled is returned when a search is cancelled. The error
	// also wraps the cause of the context's cancellation.
	ErrCancelled = errors.New("search cancelled")
)

// Hunter synthesizes a Stratagem that reproduces a payload at a target
// address using data from a captured image.
type Hunter interface {
	// Name identifies the Hunter. It is recorded as the
	// generator of the Stratagems it produces.
	Name() string

	// Search returns a Stratagem that writes payload at targetAddr.
	// The target address does not need to be within the image.
	//
	// On failure, no Stratagem is returned. The error wraps one of
	// ErrResultNotFound, ErrInvalidConfiguration or ErrCancelled.
	Search(ctx context.Context, payload []byte, targetAddr uint64) (*stratagem.Stratagem, error)
}

func invalidConfigf(format string, args ...interface{}) error {
	return fmt.Errorf("%w - %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w - %s", ErrResultNotFound, fmt.Sprintf(format, args...))
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w - %w", ErrCancelled, context.Cause(ctx))
}

func validateSearchArgs(payload []byte, targetAddr uint64) error {
	if len(payload) == 0 {
		return invalidConfigf("payload cannot be empty")
	}

	if uint64(len(payload)) > math.MaxUint64-targetAddr {
		return invalidConfigf("payload of %d bytes at 0x%x exceeds the address space",
			len(payload), targetAddr)
	}

	return nil
}

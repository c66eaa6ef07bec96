package stratagem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
)

// ApplyError is returned by Player.Apply when the target fails
// to execute an operation.
type ApplyError struct {
	// Index is the position of the failed operation.
	Index int
	Op    Operation
	Err   error
}

func (o *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply operation %d (%s) - %s", o.Index, o.Op, o.Err)
}

func (o *ApplyError) Unwrap() error {
	return o.Err
}

// Result summarizes a playback.
type Result struct {
	// RunID uniquely identifies the playback in logs.
	RunID string

	// Applied is the number of operations that
	// completed successfully.
	Applied int
}

// Player replays Stratagems against a Target.
//
// Operations are executed strictly in order. The first failure stops
// playback. A Player never attempts to regenerate or repair a
// Stratagem; that decision is left to the caller.
type Player struct {
	// OptLogger logs each operation if specified.
	OptLogger *log.Logger

	// Goto optionally specifies an operation number (starting at 1)
	// to pause at until a newline is read from OptPauseReader.
	// Every subsequent operation also pauses.
	Goto int

	// OptPauseReader is read when pausing. Defaults to os.Stdin.
	OptPauseReader io.Reader

	pauseReader *bufio.Reader
}

// Apply executes the Stratagem's operations against target.
func (o *Player) Apply(ctx context.Context, s *Stratagem, target Target) (Result, error) {
	if s == nil {
		return Result{}, errors.New("stratagem cannot be nil")
	}

	result := Result{
		RunID: uuid.New().String(),
	}

	o.logf("[%s] applying %d operation(s) from %q to 0x%x",
		result.RunID, len(s.ops), s.generator, s.targetAddr)

	for i, op := range s.ops {
		err := ctx.Err()
		if err != nil {
			return result, err
		}

		err = o.maybePause(i + 1)
		if err != nil {
			return result, err
		}

		o.logf("[%s] operation %d/%d: %s", result.RunID, i+1, len(s.ops), op)

		err = op.Apply(ctx, target)
		if err != nil {
			return result, &ApplyError{
				Index: i,
				Op:    op,
				Err:   err,
			}
		}

		result.Applied++
	}

	o.logf("[%s] done", result.RunID)

	return result, nil
}

func (o *Player) maybePause(num int) error {
	if o.Goto == 0 || o.Goto > num {
		return nil
	}

	if o.pauseReader == nil {
		r := o.OptPauseReader
		if r == nil {
			r = os.Stdin
		}
		o.pauseReader = bufio.NewReader(r)
	}

	o.logf("paused before operation %d - press enter to continue", num)

	_, err := o.pauseReader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read from pause reader - %w", err)
	}

	return nil
}

func (o *Player) logf(format string, args ...interface{}) {
	if o.OptLogger != nil {
		o.OptLogger.Printf(format, args...)
	}
}

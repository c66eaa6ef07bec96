// stratagem synthesizes and inspects plans that reproduce a payload in a
// target's memory using only a checksum-and-write primitive or a memory
// copy primitive, plus a captured image of the target's memory.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"gitlab.com/stephen-fox/bootkit/checksum"
	"gitlab.com/stephen-fox/bootkit/conv"
	"gitlab.com/stephen-fox/bootkit/memory"
	"gitlab.com/stephen-fox/bootkit/stratagem"
)

func main() {
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatalln("fatal:", err)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "stratagem",
		Short:         "Synthesize memory write plans from a captured image",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newHuntCommand())
	root.AddCommand(newShowCommand())
	root.AddCommand(newVerifyCommand())
	root.AddCommand(newSynthCommand())

	return root
}

func parseAddress(str string) (uint64, error) {
	addr, err := strconv.ParseUint(str, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse address %q - %w", str, err)
	}

	return addr, nil
}

func loadImage(path string, baseStr string) (*memory.Image, error) {
	base, err := parseAddress(baseStr)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file - %w", err)
	}

	return memory.NewImage(base, data)
}

func readPayload(path string, format string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload file - %w", err)
	}
	defer f.Close()

	payload, err := conv.DecodePayload(f, conv.Format(format))
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file - %w", err)
	}

	return payload, nil
}

func loadStratagem(path string) (*stratagem.Stratagem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stratagem file - %w", err)
	}
	defer f.Close()

	return stratagem.Read(f)
}

// newModel creates a simulated target for s. The checksum algorithm and
// byte order are taken from the Stratagem's parameters when present.
func newModel(img *memory.Image, s *stratagem.Stratagem) (*memory.Model, error) {
	config := memory.ModelConfig{
		Image: img,
	}

	if name, hasIt := s.StringParameter("algorithm"); hasIt {
		alg, err := checksum.Lookup(name)
		if err != nil {
			return nil, err
		}

		config.OptAlgorithm = alg
	}

	if name, hasIt := s.StringParameter("byte_order"); hasIt {
		order, err := memory.ParseByteOrder(name)
		if err != nil {
			return nil, err
		}

		config.OptByteOrder = order
	}

	return memory.NewModel(config)
}

// writeFileAtomic calls fn with a temporary file next to path, and
// renames the temporary file to path only if fn succeeds.
func writeFileAtomic(path string, fn func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file - %w", err)
	}

	tmpPath := tmp.Name()

	err = fn(tmp)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Rename(tmpPath, path)
	}

	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %q - %w", path, err)
	}

	return nil
}

func verboseLogger(cmd *cobra.Command, verbose bool) *log.Logger {
	if !verbose {
		return nil
	}

	return log.New(cmd.ErrOrStderr(), "", 0)
}

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gitlab.com/stephen-fox/bootkit/asmkit"
	"gitlab.com/stephen-fox/bootkit/conv"
	"gitlab.com/stephen-fox/bootkit/stratagem"
)

type verifyOptions struct {
	imagePath   string
	base        string
	payloadPath string
	format      string
	length      int
	arch        string
	syntax      string
	gotoOp      int
	verbose     bool
}

func newVerifyCommand() *cobra.Command {
	options := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Replay a stratagem against a simulated target",
		Long: `Replay a stratagem against a simulated target whose memory is
initialized from the image, and print the reconstructed bytes.

If --payload is specified, the reconstructed bytes must match it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0], options)
		},
	}

	cmd.Flags().StringVar(&options.imagePath, "image", "", "Captured memory image file")
	cmd.Flags().StringVar(&options.base, "base", "0", "Address of the image's first byte")
	cmd.Flags().StringVar(&options.payloadPath, "payload", "", "Expected payload file")
	cmd.Flags().StringVar(&options.format, "payload-format", string(conv.RawFormat), "Payload file format (raw, hex, c)")
	cmd.Flags().IntVar(&options.length, "len", 0, "Number of bytes to read back when no payload is specified")
	cmd.Flags().StringVar(&options.arch, "disasm", "", "Disassemble the reconstructed bytes (arm, arm64, x86, x86-64)")
	cmd.Flags().StringVar(&options.syntax, "syntax", "", "Disassembly syntax (gnu, go, intel)")
	cmd.Flags().IntVar(&options.gotoOp, "goto", 0, "Pause before this operation number (starting at 1) and each one after it")
	cmd.Flags().BoolVarP(&options.verbose, "verbose", "v", false, "Log each operation")

	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func runVerify(cmd *cobra.Command, path string, options *verifyOptions) error {
	s, err := loadStratagem(path)
	if err != nil {
		return err
	}

	img, err := loadImage(options.imagePath, options.base)
	if err != nil {
		return err
	}

	var payload []byte
	n := options.length

	if options.payloadPath != "" {
		payload, err = readPayload(options.payloadPath, options.format)
		if err != nil {
			return err
		}

		n = len(payload)
	}

	if n <= 0 {
		return fmt.Errorf("please specify a payload file or a positive length")
	}

	model, err := newModel(img, s)
	if err != nil {
		return err
	}

	player := &stratagem.Player{
		OptLogger:      verboseLogger(cmd, options.verbose),
		Goto:           options.gotoOp,
		OptPauseReader: cmd.InOrStdin(),
	}

	_, err = player.Apply(cmd.Context(), s, model)
	if err != nil {
		return fmt.Errorf("failed to replay stratagem - %w", err)
	}

	reconstructed, err := model.Read(s.TargetAddress(), uint64(n))
	if err != nil {
		return fmt.Errorf("failed to read back reconstructed bytes - %w", err)
	}

	out := cmd.OutOrStdout()

	fmt.Fprint(out, hex.Dump(reconstructed))

	if options.arch != "" {
		err = disassemble(out, reconstructed, s.TargetAddress(), options)
		if err != nil {
			return err
		}
	}

	if payload != nil && !bytes.Equal(payload, reconstructed) {
		return fmt.Errorf("reconstructed bytes differ from payload at offset %d",
			firstDifference(payload, reconstructed))
	}

	return nil
}

func disassemble(w io.Writer, code []byte, addr uint64, options *verifyOptions) error {
	archConfig, err := asmkit.ArchConfigFor(options.arch)
	if err != nil {
		return err
	}

	d, err := asmkit.NewDisassembler(asmkit.DisassemblerConfig{
		Src:        code,
		Addr:       addr,
		Syntax:     asmkit.DisassemblySyntax(options.syntax),
		ArchConfig: archConfig,
	})
	if err != nil {
		return err
	}

	for d.Next() {
		fmt.Fprintln(w, d.Inst().String())
	}

	return d.Err()
}

func firstDifference(a []byte, b []byte) int {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}

	return i
}

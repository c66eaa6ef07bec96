package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gitlab.com/stephen-fox/bootkit/stratagem"
)

func newShowCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a stratagem's operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}

			s, err := loadStratagem(args[0])
			if err != nil {
				return err
			}

			return printStratagem(cmd.OutOrStdout(), s)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colorized output")

	return cmd
}

func printStratagem(w io.Writer, s *stratagem.Stratagem) error {
	bold := color.New(color.Bold)

	_, err := bold.Fprintf(w, "generator: %s\n", s.Generator())
	if err != nil {
		return err
	}

	if s.PayloadName() != "" {
		fmt.Fprintf(w, "payload:   %s\n", s.PayloadName())
	}

	fmt.Fprintf(w, "target:    0x%x\n", s.TargetAddress())

	for _, name := range s.ParameterNames() {
		value, _ := s.Parameter(name)
		fmt.Fprintf(w, "  %s: %v\n", name, value)
	}

	fmt.Fprintf(w, "%d operation(s):\n", s.NumOperations())

	for i, op := range s.Operations() {
		fmt.Fprintf(w, "%5d  ", i)
		kindColor(op.Kind()).Fprintln(w, op.String())
	}

	return nil
}

func kindColor(kind stratagem.Kind) *color.Color {
	switch kind {
	case stratagem.ChecksumWriteKind:
		return color.New(color.FgCyan)
	case stratagem.CopyBlockKind:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgYellow)
	}
}

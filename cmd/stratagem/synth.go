package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gitlab.com/stephen-fox/bootkit/pattern"
)

func newSynthCommand() *cobra.Command {
	var length int
	var order int
	var outputPath string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic image in which every window is unique",
		Long: `Write a de Bruijn sequence over all 256 byte values. Every window of
--order or more bytes occurs at most once, which makes the image a
convenient stand-in for a real capture when experimenting with hunters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if length <= 0 {
				return fmt.Errorf("length must be greater than zero - got %d", length)
			}

			db := &pattern.DeBruijn{
				Order: order,
			}

			if outputPath == "" {
				return db.WriteToN(cmd.OutOrStdout(), length)
			}

			return writeFileAtomic(outputPath, func(w io.Writer) error {
				return db.WriteToN(w, length)
			})
		},
	}

	cmd.Flags().IntVar(&length, "len", 1<<16, "Number of bytes to write")
	cmd.Flags().IntVar(&order, "order", 2, "Window length that is guaranteed unique")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the image to this file instead of stdout")

	return cmd
}

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gitlab.com/stephen-fox/bootkit/conv"
	"gitlab.com/stephen-fox/bootkit/hunter"
	"gitlab.com/stephen-fox/bootkit/memory"
)

type huntOptions struct {
	imagePath   string
	base        string
	payloadPath string
	format      string
	target      string
	hunterName  string
	configPath  string
	settings    []string
	outputPath  string
	verbose     bool
}

func newHuntCommand() *cobra.Command {
	options := &huntOptions{}

	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Search for a stratagem that writes a payload at a target address",
		Long: `Search for a stratagem that writes a payload at a target address.

Hunters:
  reverse-checksum  one checksum_write per payload word (--set algorithm=crc32)
  contiguous-match  copy_block operations of runs found in the image

Hunter settings are read from --config (a YAML mapping) and then
overridden by each --set key=value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHunt(cmd, options)
		},
	}

	cmd.Flags().StringVar(&options.imagePath, "image", "", "Captured memory image file")
	cmd.Flags().StringVar(&options.base, "base", "0", "Address of the image's first byte")
	cmd.Flags().StringVar(&options.payloadPath, "payload", "", "Payload file to reproduce")
	cmd.Flags().StringVar(&options.format, "payload-format", string(conv.RawFormat), "Payload file format (raw, hex, c)")
	cmd.Flags().StringVar(&options.target, "target", "", "Address to write the payload to")
	cmd.Flags().StringVar(&options.hunterName, "hunter", hunter.ReverseChecksumName, "Hunter to search with")
	cmd.Flags().StringVar(&options.configPath, "config", "", "YAML file of hunter settings")
	cmd.Flags().StringArrayVar(&options.settings, "set", nil, "Override a hunter setting (key=value)")
	cmd.Flags().StringVarP(&options.outputPath, "output", "o", "", "Write the stratagem to this file instead of stdout")
	cmd.Flags().BoolVarP(&options.verbose, "verbose", "v", false, "Log search progress")

	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("payload")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runHunt(cmd *cobra.Command, options *huntOptions) error {
	img, err := loadImage(options.imagePath, options.base)
	if err != nil {
		return err
	}

	payload, err := readPayload(options.payloadPath, options.format)
	if err != nil {
		return err
	}

	target, err := parseAddress(options.target)
	if err != nil {
		return err
	}

	h, err := newHunter(img, options, verboseLogger(cmd, options.verbose))
	if err != nil {
		return err
	}

	s, err := h.Search(cmd.Context(), payload, target)
	if err != nil {
		return fmt.Errorf("failed to find stratagem - %w", err)
	}

	s = s.WithPayloadName(filepath.Base(options.payloadPath))

	if options.outputPath == "" {
		return s.Marshal(cmd.OutOrStdout())
	}

	return writeFileAtomic(options.outputPath, s.Marshal)
}

func newHunter(img *memory.Image, options *huntOptions, logger *log.Logger) (hunter.Hunter, error) {
	switch options.hunterName {
	case hunter.ReverseChecksumName:
		config := hunter.DefaultReverseChecksumConfig()

		err := applySettings(options, &config)
		if err != nil {
			return nil, err
		}

		h, err := hunter.NewReverseChecksumHunter(img, config)
		if err != nil {
			return nil, err
		}

		h.OptLogger = logger

		return h, nil
	case hunter.ContiguousMatchName, "contiguous":
		config := hunter.DefaultContiguousMatchConfig()

		err := applySettings(options, &config)
		if err != nil {
			return nil, err
		}

		h, err := hunter.NewContiguousMatchHunter(img, config)
		if err != nil {
			return nil, err
		}

		h.OptLogger = logger

		return h, nil
	default:
		return nil, fmt.Errorf("unknown hunter: %q", options.hunterName)
	}
}

func applySettings(options *huntOptions, config interface{}) error {
	if options.configPath != "" {
		f, err := os.Open(options.configPath)
		if err != nil {
			return fmt.Errorf("failed to open config file - %w", err)
		}

		err = hunter.LoadConfigFile(f, config)
		_ = f.Close()
		if err != nil {
			return err
		}
	}

	if len(options.settings) == 0 {
		return nil
	}

	overrides, err := parseSettings(options.settings)
	if err != nil {
		return err
	}

	return hunter.DecodeConfig(overrides, config)
}

func parseSettings(settings []string) (map[string]interface{}, error) {
	overrides := make(map[string]interface{}, len(settings))

	for _, setting := range settings {
		key, value, hasSep := strings.Cut(setting, "=")
		if !hasSep || key == "" {
			return nil, fmt.Errorf("setting must be in the form key=value - got %q", setting)
		}

		overrides[key] = value
	}

	return overrides, nil
}

package hunter

import (
	"fmt"
	"io"
	"runtime"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxIterations        = 1 << 24
	DefaultMaxCandidatesPerWord = 8
	DefaultWindowWidth          = 4
)

// SearchConfig contains the budget settings shared by all Hunters.
// The budget bounds the cost of a search. It never affects the
// correctness of a result, only the likelihood of finding one.
type SearchConfig struct {
	// MaxIterations is the maximum number of probes a search
	// may perform before giving up.
	MaxIterations int `mapstructure:"max_iterations"`

	// WorkerCount is the number of goroutines used by
	// Hunters that search in parallel.
	WorkerCount int `mapstructure:"worker_count"`
}

// DefaultSearchConfig returns a SearchConfig with default values.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MaxIterations: DefaultMaxIterations,
		WorkerCount:   runtime.NumCPU(),
	}
}

func (o SearchConfig) validate() error {
	if o.MaxIterations <= 0 {
		return invalidConfigf("max_iterations must be greater than zero - got %d", o.MaxIterations)
	}

	if o.WorkerCount <= 0 {
		return invalidConfigf("worker_count must be greater than zero - got %d", o.WorkerCount)
	}

	return nil
}

// DecodeConfig overrides the fields of config, which must be a pointer
// to one of the Hunter configuration structs, with the values in
// settings. Keys are the field names used in configuration files
// (e.g., "max_iterations"). String values are converted to the field's
// type, and integers may be written in any base ("0x100").
//
// Unknown keys are rejected with ErrInvalidConfiguration.
func DecodeConfig(settings map[string]interface{}, config interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create config decoder - %w", err)
	}

	err = decoder.Decode(settings)
	if err != nil {
		return fmt.Errorf("%w - %v", ErrInvalidConfiguration, err)
	}

	return nil
}

// LoadConfigFile reads a YAML mapping of settings from r and
// applies it to config using DecodeConfig.
func LoadConfigFile(r io.Reader, config interface{}) error {
	var settings map[string]interface{}

	err := yaml.NewDecoder(r).Decode(&settings)
	switch {
	case err == io.EOF:
		return nil
	case err != nil:
		return fmt.Errorf("%w - failed to parse config file - %v", ErrInvalidConfiguration, err)
	}

	return DecodeConfig(settings, config)
}

package stratagem

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMalformedStratagem is returned when a serialized Stratagem is
// corrupt, incomplete or uses an unknown operation type.
var ErrMalformedStratagem = errors.New("malformed stratagem")

// Config describes a new Stratagem.
type Config struct {
	// Generator identifies what produced the Stratagem,
	// typically the name of a Hunter.
	Generator string

	// PayloadName is an informational name for the payload.
	PayloadName string

	// TargetAddress is where the payload is reproduced.
	TargetAddress uint64

	// Parameters are the settings used to produce the Stratagem.
	// Values must be strings, bools or integers.
	Parameters map[string]interface{}

	// Operations are executed in order to reproduce the payload.
	Operations []Operation
}

// New creates a new *Stratagem. The Config's slices and maps are copied.
func New(config Config) (*Stratagem, error) {
	if config.Generator == "" {
		return nil, fmt.Errorf("generator cannot be empty")
	}

	if len(config.Operations) == 0 {
		return nil, fmt.Errorf("a stratagem requires at least one operation")
	}

	ops := make([]Operation, len(config.Operations))
	for i, op := range config.Operations {
		if op == nil {
			return nil, fmt.Errorf("operation %d is nil", i)
		}
		ops[i] = op
	}

	params := make(map[string]interface{}, len(config.Parameters))
	for name, value := range config.Parameters {
		normalized, err := normalizeParameter(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q - %w", name, err)
		}
		params[name] = normalized
	}

	return &Stratagem{
		generator:   config.Generator,
		payloadName: config.PayloadName,
		targetAddr:  config.TargetAddress,
		params:      params,
		ops:         ops,
	}, nil
}

// Stratagem is an immutable, ordered plan of Operations that reproduces
// a payload at a target address.
//
// Replaying the operations in order against a target whose memory
// matches the captured image at every address the operations read
// produces the payload at TargetAddress. Operations may read memory
// written by earlier operations.
type Stratagem struct {
	generator   string
	payloadName string
	targetAddr  uint64
	params      map[string]interface{}
	ops         []Operation
}

// Generator returns the identifier of what produced the Stratagem.
func (o *Stratagem) Generator() string {
	return o.generator
}

// PayloadName returns the informational payload name.
func (o *Stratagem) PayloadName() string {
	return o.payloadName
}

// TargetAddress returns the address the payload is written to.
func (o *Stratagem) TargetAddress() uint64 {
	return o.targetAddr
}

// NumOperations returns the number of operations.
func (o *Stratagem) NumOperations() int {
	return len(o.ops)
}

// Operations returns a copy of the Stratagem's operations.
func (o *Stratagem) Operations() []Operation {
	cp := make([]Operation, len(o.ops))
	copy(cp, o.ops)
	return cp
}

// Parameters returns a copy of the Stratagem's parameters.
func (o *Stratagem) Parameters() map[string]interface{} {
	cp := make(map[string]interface{}, len(o.params))
	for k, v := range o.params {
		cp[k] = v
	}
	return cp
}

// Parameter returns the named parameter.
func (o *Stratagem) Parameter(name string) (interface{}, bool) {
	v, hasIt := o.params[name]
	return v, hasIt
}

// StringParameter returns the named parameter if it is a string.
func (o *Stratagem) StringParameter(name string) (string, bool) {
	v, hasIt := o.params[name]
	if !hasIt {
		return "", false
	}
	str, isStr := v.(string)
	return str, isStr
}

// ParameterNames returns the names of all parameters, sorted.
func (o *Stratagem) ParameterNames() []string {
	names := make([]string, 0, len(o.params))
	for name := range o.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithPayloadName returns a copy of the Stratagem with
// a different payload name.
func (o *Stratagem) WithPayloadName(name string) *Stratagem {
	return &Stratagem{
		generator:   o.generator,
		payloadName: name,
		targetAddr:  o.targetAddr,
		params:      o.Parameters(),
		ops:         o.Operations(),
	}
}

// normalizeParameter converts integers to int64, or uint64 for values
// beyond the range of int64, so that parameters compare equal after
// a round trip through the serialized form.
func normalizeParameter(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string, bool:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return normalizeUint(uint64(t)), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return normalizeUint(t), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", v)
	}
}

func normalizeUint(u uint64) interface{} {
	if u > math.MaxInt64 {
		return u
	}
	return int64(u)
}

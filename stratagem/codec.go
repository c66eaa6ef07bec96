package stratagem

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FormatVersion is the version of the serialized form
// written by Marshal.
const FormatVersion = 1

// document is the decoded form of a serialized Stratagem.
type document struct {
	Version       *int                   `yaml:"version"`
	Generator     string                 `yaml:"generator"`
	Payload       string                 `yaml:"payload"`
	TargetAddress string                 `yaml:"target_address"`
	Parameters    map[string]interface{} `yaml:"parameters"`
	Operations    []map[string]yaml.Node `yaml:"operations"`
}

// MarshalText returns the serialized form of the Stratagem.
func (o *Stratagem) MarshalText() ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	err := o.Marshal(buf)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Marshal writes the serialized form of the Stratagem to w.
func (o *Stratagem) Marshal(w io.Writer) error {
	root := mappingNode()

	appendPair(root, "version", intNode(FormatVersion))
	appendPair(root, "generator", stringNode(o.generator))
	appendPair(root, "payload", stringNode(o.payloadName))
	appendPair(root, "target_address", uintNode(Field{Value: o.targetAddr, Address: true}))

	if len(o.params) > 0 {
		params := mappingNode()
		for _, name := range o.ParameterNames() {
			value := &yaml.Node{}
			err := value.Encode(o.params[name])
			if err != nil {
				return fmt.Errorf("failed to encode parameter %q - %w", name, err)
			}
			appendPair(params, name, value)
		}
		appendPair(root, "parameters", params)
	}

	ops := &yaml.Node{Kind: yaml.SequenceNode}
	for _, op := range o.ops {
		opNode := mappingNode()
		appendPair(opNode, "op", stringNode(string(op.Kind())))
		for _, field := range op.Fields() {
			appendPair(opNode, field.Name, uintNode(field))
		}
		ops.Content = append(ops.Content, opNode)
	}
	appendPair(root, "operations", ops)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(&yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{root},
	})
	if err != nil {
		return fmt.Errorf("failed to encode stratagem - %w", err)
	}

	return enc.Close()
}

// Read reads a serialized Stratagem from r.
func Read(r io.Reader) (*Stratagem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stratagem - %w", err)
	}

	return Unmarshal(data)
}

// Unmarshal parses a serialized Stratagem. Any error wraps
// ErrMalformedStratagem. Either the whole document is accepted,
// or nothing is returned.
func Unmarshal(data []byte) (*Stratagem, error) {
	s, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w - %v", ErrMalformedStratagem, err)
	}
	return s, nil
}

func unmarshal(data []byte) (*Stratagem, error) {
	var doc document

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document - %w", err)
	}

	if doc.Version == nil {
		return nil, fmt.Errorf("missing required field %q", "version")
	}

	if *doc.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported version: %d", *doc.Version)
	}

	if doc.Generator == "" {
		return nil, fmt.Errorf("missing required field %q", "generator")
	}

	if doc.TargetAddress == "" {
		return nil, fmt.Errorf("missing required field %q", "target_address")
	}

	targetAddr, err := strconv.ParseUint(doc.TargetAddress, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target address - %w", err)
	}

	if len(doc.Operations) == 0 {
		return nil, fmt.Errorf("missing required field %q", "operations")
	}

	ops := make([]Operation, len(doc.Operations))
	for i, opDoc := range doc.Operations {
		op, err := decodeOperation(opDoc)
		if err != nil {
			return nil, fmt.Errorf("operation %d - %w", i, err)
		}
		ops[i] = op
	}

	return New(Config{
		Generator:     doc.Generator,
		PayloadName:   doc.Payload,
		TargetAddress: targetAddr,
		Parameters:    doc.Parameters,
		Operations:    ops,
	})
}

func decodeOperation(opDoc map[string]yaml.Node) (Operation, error) {
	fields := make(map[string]string, len(opDoc))

	for name, node := range opDoc {
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("field %q is not a scalar", name)
		}
		fields[name] = node.Value
	}

	kind, hasIt := fields["op"]
	if !hasIt {
		return nil, fmt.Errorf("missing required field %q", "op")
	}
	delete(fields, "op")

	decodeFn, hasIt := decoders[Kind(kind)]
	if !hasIt {
		return nil, fmt.Errorf("unknown operation type: %q", kind)
	}

	reader := &FieldReader{
		fields: fields,
		used:   make(map[string]struct{}, len(fields)),
	}

	op, err := decodeFn(reader)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", kind, err)
	}

	err = reader.checkUnused()
	if err != nil {
		return nil, fmt.Errorf("%s - %w", kind, err)
	}

	return op, nil
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func appendPair(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, stringNode(key), value)
}

func stringNode(str string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: str}
}

func intNode(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}

func uintNode(field Field) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: field.text()}
}

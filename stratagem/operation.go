package stratagem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gitlab.com/stephen-fox/bootkit/memory"
)

// Kind identifies the type of an Operation in the serialized form.
type Kind string

const (
	ChecksumWriteKind Kind = "checksum_write"
	CopyBlockKind     Kind = "copy_block"
)

// Target abstracts the restricted primitives of a target device.
type Target interface {
	// ChecksumWrite instructs the target to compute a checksum
	// over length bytes at src and to write the result at dst.
	ChecksumWrite(ctx context.Context, src uint64, length uint64, dst uint64) error

	// CopyBlock instructs the target to copy length bytes
	// from src to dst.
	CopyBlock(ctx context.Context, src uint64, length uint64, dst uint64) error
}

// Operation is a single step of a Stratagem.
type Operation interface {
	// Kind returns the operation's type tag.
	Kind() Kind

	// Source returns the range of target memory read by the operation.
	Source() memory.Range

	// Fields returns the operation's parameters in serialization order.
	Fields() []Field

	// Apply executes the operation against a target.
	Apply(ctx context.Context, target Target) error

	fmt.Stringer
}

// Field is a named integer parameter of an Operation.
type Field struct {
	Name  string
	Value uint64

	// Address is true if the value is an address,
	// which is serialized in hexadecimal.
	Address bool
}

func (o Field) text() string {
	if o.Address {
		return "0x" + strconv.FormatUint(o.Value, 16)
	}
	return strconv.FormatUint(o.Value, 10)
}

// DecodeFn creates an Operation of a registered Kind from its fields.
type DecodeFn func(fields *FieldReader) (Operation, error)

var decoders = map[Kind]DecodeFn{
	ChecksumWriteKind: decodeChecksumWrite,
	CopyBlockKind:     decodeCopyBlock,
}

// RegisterKind adds an operation type to the set understood by
// Unmarshal. It panics if kind is already registered.
func RegisterKind(kind Kind, fn DecodeFn) {
	if _, hasIt := decoders[kind]; hasIt {
		panic(fmt.Sprintf("operation kind %q is already registered", kind))
	}
	decoders[kind] = fn
}

// Kinds returns the registered operation kinds, sorted.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(decoders))
	for kind := range decoders {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i] < kinds[j]
	})
	return kinds
}

// FieldReader provides the fields of a serialized Operation to a DecodeFn.
type FieldReader struct {
	fields map[string]string
	used   map[string]struct{}
}

// Uint parses the named field. The field must exist.
func (o *FieldReader) Uint(name string) (uint64, error) {
	str, hasIt := o.fields[name]
	if !hasIt {
		return 0, fmt.Errorf("missing required field %q", name)
	}

	o.used[name] = struct{}{}

	value, err := strconv.ParseUint(str, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse field %q - %w", name, err)
	}

	return value, nil
}

func (o *FieldReader) checkUnused() error {
	for name := range o.fields {
		if _, hasIt := o.used[name]; !hasIt {
			return fmt.Errorf("unknown field %q", name)
		}
	}
	return nil
}

// ChecksumWrite instructs the target to compute a checksum over
// [SourceAddress, SourceAddress+SourceLength) and to write the
// raw result word at DestAddress.
type ChecksumWrite struct {
	SourceAddress uint64
	SourceLength  uint64
	DestAddress   uint64
}

func (o ChecksumWrite) Kind() Kind {
	return ChecksumWriteKind
}

func (o ChecksumWrite) Source() memory.Range {
	return memory.Range{Start: o.SourceAddress, Len: o.SourceLength}
}

func (o ChecksumWrite) Fields() []Field {
	return []Field{
		{Name: "source_address", Value: o.SourceAddress, Address: true},
		{Name: "source_length", Value: o.SourceLength},
		{Name: "dest_address", Value: o.DestAddress, Address: true},
	}
}

func (o ChecksumWrite) Apply(ctx context.Context, target Target) error {
	return target.ChecksumWrite(ctx, o.SourceAddress, o.SourceLength, o.DestAddress)
}

func (o ChecksumWrite) String() string {
	return fmt.Sprintf("checksum 0x%x+%d -> 0x%x",
		o.SourceAddress, o.SourceLength, o.DestAddress)
}

func decodeChecksumWrite(fields *FieldReader) (Operation, error) {
	var op ChecksumWrite
	var err error

	op.SourceAddress, err = fields.Uint("source_address")
	if err != nil {
		return nil, err
	}

	op.SourceLength, err = fields.Uint("source_length")
	if err != nil {
		return nil, err
	}

	op.DestAddress, err = fields.Uint("dest_address")
	if err != nil {
		return nil, err
	}

	return op, validateSpan(op.SourceAddress, op.SourceLength)
}

// CopyBlock instructs the target to copy Length bytes
// from SourceAddress to DestAddress.
type CopyBlock struct {
	SourceAddress uint64
	Length        uint64
	DestAddress   uint64
}

func (o CopyBlock) Kind() Kind {
	return CopyBlockKind
}

func (o CopyBlock) Source() memory.Range {
	return memory.Range{Start: o.SourceAddress, Len: o.Length}
}

func (o CopyBlock) Fields() []Field {
	return []Field{
		{Name: "source_address", Value: o.SourceAddress, Address: true},
		{Name: "length", Value: o.Length},
		{Name: "dest_address", Value: o.DestAddress, Address: true},
	}
}

func (o CopyBlock) Apply(ctx context.Context, target Target) error {
	return target.CopyBlock(ctx, o.SourceAddress, o.Length, o.DestAddress)
}

func (o CopyBlock) String() string {
	return fmt.Sprintf("copy 0x%x+%d -> 0x%x",
		o.SourceAddress, o.Length, o.DestAddress)
}

func decodeCopyBlock(fields *FieldReader) (Operation, error) {
	var op CopyBlock
	var err error

	op.SourceAddress, err = fields.Uint("source_address")
	if err != nil {
		return nil, err
	}

	op.Length, err = fields.Uint("length")
	if err != nil {
		return nil, err
	}

	op.DestAddress, err = fields.Uint("dest_address")
	if err != nil {
		return nil, err
	}

	err = validateSpan(op.SourceAddress, op.Length)
	if err != nil {
		return nil, err
	}

	return op, validateSpan(op.DestAddress, op.Length)
}

func validateSpan(addr uint64, length uint64) error {
	if length > math.MaxUint64-addr {
		return fmt.Errorf("%d bytes at 0x%x exceeds the address space", length, addr)
	}
	return nil
}

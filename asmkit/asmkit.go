// Package asmkit disassembles machine code, such as a payload
// reconstructed by replaying a Stratagem.
package asmkit

import (
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

const (
	DefaultSyntax DisassemblySyntax = ""
	GNUSyntax     DisassemblySyntax = "gnu"
	GoSyntax      DisassemblySyntax = "go"
	IntelSyntax   DisassemblySyntax = "intel"
)

type DisassemblySyntax string

// DisassemblerConfig configures a Disassembler.
type DisassemblerConfig struct {
	// Src is the machine code to disassemble.
	Src []byte

	// Addr is the address of the first byte of Src.
	Addr uint64

	// Syntax is the assembly syntax. The default is GNU syntax
	// for ARM and Intel syntax for x86.
	Syntax DisassemblySyntax

	// ArchConfig is one of X86Config, ARMConfig or ARM64Config.
	ArchConfig interface{}
}

type X86Config struct {
	Bits int
}

// ARMConfig selects 32-bit ARM (A32) instructions.
type ARMConfig struct{}

// ARM64Config selects 64-bit ARM (A64) instructions.
type ARM64Config struct{}

// ArchConfigFor returns the ArchConfig for an architecture name:
// "arm", "arm64", "x86" or "x86-64".
func ArchConfigFor(name string) (interface{}, error) {
	switch strings.ToLower(name) {
	case "arm", "arm32", "a32":
		return ARMConfig{}, nil
	case "arm64", "aarch64", "a64":
		return ARM64Config{}, nil
	case "x86", "i386", "x86-32":
		return X86Config{Bits: 32}, nil
	case "x86-64", "x86_64", "amd64":
		return X86Config{Bits: 64}, nil
	default:
		return nil, fmt.Errorf("unsupported architecture: %q", name)
	}
}

type decodeFn func(code []byte, pc uint64) (length int, assembly string, err error)

// NewDisassembler creates a new *Disassembler.
func NewDisassembler(config DisassemblerConfig) (*Disassembler, error) {
	var decode decodeFn

	switch assertedConfig := config.ArchConfig.(type) {
	case ARMConfig:
		var syntaxFn func(inst armasm.Inst, pc uint64) string
		switch config.Syntax {
		case DefaultSyntax, GNUSyntax:
			syntaxFn = func(inst armasm.Inst, _ uint64) string {
				return armasm.GNUSyntax(inst)
			}
		case GoSyntax:
			syntaxFn = func(inst armasm.Inst, pc uint64) string {
				return armasm.GoSyntax(inst, pc, nil, nil)
			}
		default:
			return nil, fmt.Errorf("unsupported syntax type for arm: %q", config.Syntax)
		}

		decode = func(code []byte, pc uint64) (int, string, error) {
			inst, err := armasm.Decode(code, armasm.ModeARM)
			if err != nil {
				return 0, "", err
			}
			return inst.Len, syntaxFn(inst, pc), nil
		}
	case ARM64Config:
		var syntaxFn func(inst arm64asm.Inst, pc uint64) string
		switch config.Syntax {
		case DefaultSyntax, GNUSyntax:
			syntaxFn = func(inst arm64asm.Inst, _ uint64) string {
				return arm64asm.GNUSyntax(inst)
			}
		case GoSyntax:
			syntaxFn = func(inst arm64asm.Inst, pc uint64) string {
				return arm64asm.GoSyntax(inst, pc, nil, nil)
			}
		default:
			return nil, fmt.Errorf("unsupported syntax type for arm64: %q", config.Syntax)
		}

		decode = func(code []byte, pc uint64) (int, string, error) {
			inst, err := arm64asm.Decode(code)
			if err != nil {
				return 0, "", err
			}
			return 4, syntaxFn(inst, pc), nil
		}
	case X86Config:
		var syntaxFn func(inst x86asm.Inst, pc uint64) string
		switch config.Syntax {
		case DefaultSyntax, IntelSyntax:
			syntaxFn = func(inst x86asm.Inst, pc uint64) string {
				return x86asm.IntelSyntax(inst, pc, nil)
			}
		case GNUSyntax:
			syntaxFn = func(inst x86asm.Inst, pc uint64) string {
				return x86asm.GNUSyntax(inst, pc, nil)
			}
		case GoSyntax:
			syntaxFn = func(inst x86asm.Inst, pc uint64) string {
				return x86asm.GoSyntax(inst, pc, nil)
			}
		default:
			return nil, fmt.Errorf("unsupported syntax type for x86: %q", config.Syntax)
		}

		switch assertedConfig.Bits {
		case 16, 32, 64:
		default:
			return nil, fmt.Errorf("unsupported x86 mode: %d bits", assertedConfig.Bits)
		}

		decode = func(code []byte, pc uint64) (int, string, error) {
			inst, err := x86asm.Decode(code, assertedConfig.Bits)
			if err != nil {
				return 0, "", err
			}
			return inst.Len, syntaxFn(inst, pc), nil
		}
	default:
		return nil, fmt.Errorf("unsupported config type: %T", assertedConfig)
	}

	return &Disassembler{
		src:    config.Src,
		addr:   config.Addr,
		decode: decode,
	}, nil
}

// Disassembler decodes one instruction at a time.
//
// Callers invoke Next until it returns false, and then check Err.
type Disassembler struct {
	src    []byte
	addr   uint64
	index  int
	decode decodeFn
	inst   Inst
	err    error
}

// Next decodes the next instruction. It returns false when all
// instructions have been decoded or when an error occurs.
func (o *Disassembler) Next() bool {
	if o.err != nil || o.index >= len(o.src) {
		return false
	}

	remaining := o.src[o.index:]
	pc := o.addr + uint64(o.index)

	length, assembly, err := o.decode(remaining, pc)
	if err != nil {
		o.err = fmt.Errorf("failed to decode instruction at 0x%x (index %d) - %w - remaining data: 0x%x",
			pc, o.index, err, remaining)
		return false
	}

	o.inst = Inst{
		Addr:     pc,
		Index:    o.index,
		Bin:      copySlice(remaining, length),
		Assembly: assembly,
	}

	o.index += length

	return true
}

// Inst returns the instruction decoded by the last call to Next.
func (o *Disassembler) Inst() Inst {
	return o.inst
}

// Err returns the error that stopped decoding, if any.
func (o *Disassembler) Err() error {
	return o.err
}

func copySlice(src []byte, numBytes int) []byte {
	cp := make([]byte, numBytes)

	copy(cp, src[0:numBytes])

	return cp
}

// Inst is a decoded instruction.
type Inst struct {
	Addr     uint64
	Index    int
	Bin      []byte
	Assembly string
}

func (o Inst) String() string {
	return fmt.Sprintf("%08x:  %-16x  %s", o.Addr, o.Bin, o.Assembly)
}

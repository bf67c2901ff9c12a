// Package ga defines the General Assembly intermediate representation: a
// target-neutral instruction set that an architecture translator lowers
// machine code into, and that the executor interprets one Operation at a
// time against a GAState.
package ga

import "fmt"

// OperandKind tags the variant held by an Operand.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandLocal
	OperandImmediate
	OperandAddressInLocal
	OperandFlag
)

// Operand is a tagged value appearing in an Operation. Locals are
// function-scoped scratch slots distinct from architectural registers;
// AddressInLocal treats a local's value as a pointer and gives the width
// of the memory access through it.
type Operand struct {
	Kind  OperandKind
	Name  string // Register/Local/AddressInLocal/Flag name
	Value uint64 // Immediate value
	Width uint32 // bit width: Immediate's own width, or AddressInLocal's access width
}

func Register(name string) Operand { return Operand{Kind: OperandRegister, Name: name} }
func Local(name string) Operand    { return Operand{Kind: OperandLocal, Name: name} }
func Flag(name string) Operand     { return Operand{Kind: OperandFlag, Name: name} }

func Immediate(value uint64, width uint32) Operand {
	return Operand{Kind: OperandImmediate, Value: value, Width: width}
}

func AddressInLocal(name string, width uint32) Operand {
	return Operand{Kind: OperandAddressInLocal, Name: name, Width: width}
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandRegister:
		return fmt.Sprintf("reg(%s)", o.Name)
	case OperandLocal:
		return fmt.Sprintf("local(%s)", o.Name)
	case OperandImmediate:
		return fmt.Sprintf("imm(0x%x:%d)", o.Value, o.Width)
	case OperandAddressInLocal:
		return fmt.Sprintf("*local(%s):%d", o.Name, o.Width)
	case OperandFlag:
		return fmt.Sprintf("flag(%s)", o.Name)
	default:
		return "operand(?)"
	}
}

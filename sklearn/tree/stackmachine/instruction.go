package stackmachine

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is one decoded token. Only the field selected by the opcode's
// OperandKind is meaningful.
type Instruction struct {
	Op    Opcode
	Index int       // OperandIndex and OperandTarget
	Value float64   // OperandFloat
	Set   []float64 // OperandSet
}

// PushFeature returns push_feature:i.
func PushFeature(i int) Instruction { return Instruction{Op: OpPushFeature, Index: i} }

// PushConst returns push_const:v.
func PushConst(v float64) Instruction { return Instruction{Op: OpPushConst, Value: v} }

// CmpLE returns cmp_le.
func CmpLE() Instruction { return Instruction{Op: OpCmpLE} }

// CmpIn returns cmp_in over a copy of set.
func CmpIn(set []float64) Instruction {
	return Instruction{Op: OpCmpIn, Set: append([]float64(nil), set...)}
}

// JumpFalse returns jump_false:target.
func JumpFalse(target int) Instruction { return Instruction{Op: OpJumpFalse, Index: target} }

// Jump returns jump:target.
func Jump(target int) Instruction { return Instruction{Op: OpJump, Index: target} }

// ReturnClass returns return_class:c.
func ReturnClass(c int) Instruction { return Instruction{Op: OpReturnClass, Index: c} }

// ReturnValue returns return_value:v.
func ReturnValue(v float64) Instruction { return Instruction{Op: OpReturnValue, Value: v} }

// String renders the instruction as a script token.
func (in Instruction) String() string {
	info, ok := in.Op.Info()
	if !ok {
		return in.Op.String()
	}
	switch info.Operand {
	case OperandIndex, OperandTarget:
		return info.Name + string(operandDelim) + strconv.Itoa(in.Index)
	case OperandFloat:
		return info.Name + string(operandDelim) + FormatFloat(in.Value)
	case OperandSet:
		parts := make([]string, len(in.Set))
		for i, c := range in.Set {
			parts[i] = FormatFloat(c)
		}
		return info.Name + string(operandDelim) + strings.Join(parts, string(setDelim))
	default:
		return info.Name
	}
}

// Format joins instructions into a script.
func Format(code []Instruction, sep byte) (string, error) {
	if err := CheckSeparator(sep); err != nil {
		return "", err
	}
	var sb strings.Builder
	for i, in := range code {
		if i > 0 {
			sb.WriteByte(sep)
		}
		sb.WriteString(in.String())
	}
	return sb.String(), nil
}

// Assembler accumulates instructions and patches forward jumps.
type Assembler struct {
	code []Instruction
}

// Emit appends in and returns its offset.
func (a *Assembler) Emit(in Instruction) int {
	a.code = append(a.code, in)
	return len(a.code) - 1
}

// Patch sets the target of the jump at offset.
func (a *Assembler) Patch(offset, target int) {
	in := &a.code[offset]
	if in.Op != OpJump && in.Op != OpJumpFalse {
		panic(fmt.Sprintf("stackmachine: patch of non-jump %s at %d", in.Op, offset))
	}
	in.Index = target
}

// Len returns the number of emitted instructions, the offset of the next one.
func (a *Assembler) Len() int {
	return len(a.code)
}

// Code returns the emitted instructions.
func (a *Assembler) Code() []Instruction {
	return a.code
}

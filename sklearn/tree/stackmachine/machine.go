package stackmachine

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

// stackBufSize covers every tree script: a split needs at most two slots.
const stackBufSize = 8

// Program is a parsed, validated script. It is never mutated after
// construction and may be shared by concurrent evaluations.
type Program struct {
	code     []Instruction
	maxStack int
}

// Parse decodes a script whose tokens are separated by sep.
func Parse(script string, sep byte) (*Program, error) {
	if err := CheckSeparator(sep); err != nil {
		return nil, err
	}
	tokens := strings.Split(script, string(sep))
	// a single trailing separator is tolerated
	if n := len(tokens); n > 1 && strings.TrimSpace(tokens[n-1]) == "" {
		tokens = tokens[:n-1]
	}

	code := make([]Instruction, 0, len(tokens))
	for i, tok := range tokens {
		in, err := parseToken(strings.TrimSpace(tok), i)
		if err != nil {
			return nil, err
		}
		code = append(code, in)
	}
	return NewProgram(code)
}

// MustParse is Parse with DefaultSeparator that panics on error. For tests
// and fixed scripts.
func MustParse(script string) *Program {
	p, err := Parse(script, DefaultSeparator)
	if err != nil {
		panic(err)
	}
	return p
}

func parseToken(tok string, offset int) (Instruction, error) {
	name, operand, hasOperand := strings.Cut(tok, string(operandDelim))
	op, ok := mnemonics[name]
	if !ok {
		return Instruction{}, errors.NewMalformedScriptError(offset, fmt.Sprintf("unknown opcode %q", name))
	}
	info := opcodeTable[op]
	in := Instruction{Op: op}

	if info.Operand == OperandNone {
		if hasOperand {
			return in, errors.NewMalformedScriptError(offset, fmt.Sprintf("%s takes no operand", name))
		}
		return in, nil
	}
	if !hasOperand {
		return in, errors.NewMalformedScriptError(offset, fmt.Sprintf("%s requires an operand", name))
	}

	switch info.Operand {
	case OperandIndex, OperandTarget:
		n, err := strconv.Atoi(operand)
		if err != nil || n < 0 {
			return in, errors.NewMalformedScriptError(offset, fmt.Sprintf("bad integer operand %q", operand))
		}
		in.Index = n
	case OperandFloat:
		v, err := strconv.ParseFloat(operand, 64)
		if err != nil {
			return in, errors.NewMalformedScriptError(offset, fmt.Sprintf("bad numeric operand %q", operand))
		}
		in.Value = v
	case OperandSet:
		if operand == "" {
			break
		}
		for _, part := range strings.Split(operand, string(setDelim)) {
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return in, errors.NewMalformedScriptError(offset, fmt.Sprintf("bad category code %q", part))
			}
			in.Set = append(in.Set, v)
		}
	}
	return in, nil
}

// NewProgram validates code and wraps it in a Program. The slice is copied.
//
// Validation rejects empty programs, unknown opcodes, jump targets outside
// the program and paths that reach one instruction with different stack
// depths. The maximum stack depth is computed on the way.
func NewProgram(code []Instruction) (*Program, error) {
	if len(code) == 0 {
		return nil, errors.NewMalformedScriptError(-1, "empty script")
	}
	code = slices.Clone(code)
	for i := range code {
		in := &code[i]
		if _, ok := in.Op.Info(); !ok {
			return nil, errors.NewMalformedScriptError(i, fmt.Sprintf("unknown opcode %d", in.Op))
		}
		if in.Op == OpJump || in.Op == OpJumpFalse {
			if in.Index < 0 || in.Index >= len(code) {
				return nil, errors.NewMalformedScriptError(i, fmt.Sprintf("jump target %d out of range [0, %d)", in.Index, len(code)))
			}
		}
		if in.Op == OpCmpIn {
			in.Set = slices.Clone(in.Set)
		}
	}

	maxStack, err := stackDepth(code)
	if err != nil {
		return nil, err
	}
	return &Program{code: code, maxStack: maxStack}, nil
}

// stackDepth walks every reachable path and returns the deepest stack.
// Underflow is left to the interpreter so the failure carries the runtime offset.
func stackDepth(code []Instruction) (int, error) {
	depth := make([]int, len(code))
	for i := range depth {
		depth[i] = -1
	}
	depth[0] = 0
	work := []int{0}
	maxDepth := 0

	visit := func(from, to, d int) error {
		if to >= len(code) {
			return nil
		}
		switch depth[to] {
		case -1:
			depth[to] = d
			work = append(work, to)
		case d:
		default:
			return errors.NewMalformedScriptError(from, fmt.Sprintf("inconsistent stack depth at %d", to))
		}
		return nil
	}

	for len(work) > 0 {
		ip := work[len(work)-1]
		work = work[:len(work)-1]
		in := code[ip]
		info := opcodeTable[in.Op]
		if depth[ip] < info.Pops {
			continue
		}
		d := depth[ip] - info.Pops + info.Pushes
		maxDepth = max(maxDepth, d)

		var err error
		switch in.Op {
		case OpReturnClass, OpReturnValue:
		case OpJump:
			err = visit(ip, in.Index, d)
		case OpJumpFalse:
			if err = visit(ip, ip+1, d); err == nil {
				err = visit(ip, in.Index, d)
			}
		default:
			err = visit(ip, ip+1, d)
		}
		if err != nil {
			return 0, err
		}
	}
	return maxDepth, nil
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.code)
}

// MaxStack returns the deepest stack any path can reach.
func (p *Program) MaxStack() int {
	return p.maxStack
}

// Instructions returns a copy of the program's instructions.
func (p *Program) Instructions() []Instruction {
	out := slices.Clone(p.code)
	for i := range out {
		out[i].Set = slices.Clone(out[i].Set)
	}
	return out
}

// Script serializes the program with sep.
func (p *Program) Script(sep byte) (string, error) {
	return Format(p.code, sep)
}

// Disassemble returns one numbered instruction per line.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	for i, in := range p.code {
		fmt.Fprintf(&sb, "%04d %s\n", i, in)
	}
	return sb.String()
}

// Evaluate runs the program against v. In classification mode the program
// must end in return_class, otherwise in return_value.
//
// Unset features are pushed as NaN; comparisons propagate NaN and
// jump_false treats it as false, so a missing value always takes the false
// branch. Execution stops with MalformedScriptError when the instruction
// pointer leaves the program, the stack underflows, or no return is reached
// within len(program) steps.
func (p *Program) Evaluate(v vector.Vector, classification bool) (float64, error) {
	if v == nil {
		return 0, errors.ErrNilVector
	}

	var buf [stackBufSize]float64
	stack := buf[:0]
	if p.maxStack > stackBufSize {
		stack = make([]float64, 0, p.maxStack)
	}

	code := p.code
	ip := 0
	for steps := 0; ; steps++ {
		if steps == len(code) {
			return 0, errors.NewMalformedScriptError(ip, fmt.Sprintf("no return reached within %d steps", len(code)))
		}
		if ip < 0 || ip >= len(code) {
			return 0, errors.NewMalformedScriptError(ip, "instruction pointer out of range")
		}
		in := &code[ip]
		if int(in.Op) >= len(popCount) {
			return 0, errors.NewMalformedScriptError(ip, fmt.Sprintf("unknown opcode %d", in.Op))
		}
		if len(stack) < popCount[in.Op] {
			return 0, errors.NewMalformedScriptError(ip, "stack underflow")
		}

		switch in.Op {
		case OpPushFeature:
			stack = append(stack, v.GetOr(in.Index, math.NaN()))
			ip++
		case OpPushConst:
			stack = append(stack, in.Value)
			ip++
		case OpCmpLE:
			n := len(stack)
			threshold, value := stack[n-1], stack[n-2]
			stack[n-2] = CompareLE(value, threshold)
			stack = stack[:n-1]
			ip++
		case OpCmpIn:
			n := len(stack)
			stack[n-1] = Member(stack[n-1], in.Set)
			ip++
		case OpJumpFalse:
			pred := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if Truthy(pred) {
				ip++
			} else {
				ip = in.Index
			}
		case OpJump:
			ip = in.Index
		case OpReturnClass:
			if !classification {
				return 0, errors.NewModeMismatchError("regression", "class index")
			}
			return float64(in.Index), nil
		case OpReturnValue:
			if classification {
				return 0, errors.NewModeMismatchError("classification", "continuous value")
			}
			return in.Value, nil
		default:
			return 0, errors.NewMalformedScriptError(ip, fmt.Sprintf("unknown opcode %d", in.Op))
		}
	}
}

// Evaluate parses script with DefaultSeparator and evaluates it once.
// Callers evaluating many rows should Parse once and reuse the Program.
func Evaluate(script string, v vector.Vector, classification bool) (float64, error) {
	p, err := Parse(script, DefaultSeparator)
	if err != nil {
		return 0, err
	}
	return p.Evaluate(v, classification)
}

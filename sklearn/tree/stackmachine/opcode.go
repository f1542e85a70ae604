// Package stackmachine executes decision trees compiled to opcode scripts.
//
// A script is a flat list of instructions separated by a single separator
// character. Every token has the form OP[:operand]:
//
//	push_feature:0;push_const:2.5;cmp_le;jump_false:6;return_class:0;return_class:1
//
// Parse turns a script into an immutable Program which can be evaluated
// concurrently against any number of feature vectors.
package stackmachine

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single instruction.
type Opcode uint8

const (
	OpPushFeature Opcode = iota + 1 // push features[i], NaN when unset
	OpPushConst                     // push literal
	OpCmpLE                         // pop threshold, pop value, push value <= threshold
	OpCmpIn                         // pop value, push value in set
	OpJumpFalse                     // pop predicate, jump when 0 or NaN
	OpJump                          // unconditional jump
	OpReturnClass                   // halt with a class index
	OpReturnValue                   // halt with a continuous value
)

// OperandKind describes what follows the ':' in a token.
type OperandKind uint8

const (
	OperandNone   OperandKind = iota
	OperandIndex              // non-negative integer (feature or class index)
	OperandFloat              // float64 literal
	OperandSet                // comma-joined float64 literals
	OperandTarget             // instruction offset
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name    string      // mnemonic
	Operand OperandKind // operand encoding
	Pops    int         // values popped
	Pushes  int         // values pushed
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpPushFeature: {"push_feature", OperandIndex, 0, 1},
	OpPushConst:   {"push_const", OperandFloat, 0, 1},
	OpCmpLE:       {"cmp_le", OperandNone, 2, 1},
	OpCmpIn:       {"cmp_in", OperandSet, 1, 1},
	OpJumpFalse:   {"jump_false", OperandTarget, 1, 0},
	OpJump:        {"jump", OperandTarget, 0, 0},
	OpReturnClass: {"return_class", OperandIndex, 0, 0},
	OpReturnValue: {"return_value", OperandFloat, 0, 0},
}

// popCount mirrors opcodeTable[op].Pops for the interpreter loop.
var popCount = func() (t [OpReturnValue + 1]int) {
	for op, info := range opcodeTable {
		t[op] = info.Pops
	}
	return t
}()

var mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.Name] = op
	}
	return m
}()

// Info returns the metadata for op.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// String returns the mnemonic.
func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// IsTerminal reports whether op halts the machine.
func (op Opcode) IsTerminal() bool {
	return op == OpReturnClass || op == OpReturnValue
}

// ---------------------------------------------------------------------------
// Separator and literal encoding
// ---------------------------------------------------------------------------

// DefaultSeparator is used when the caller has no preference.
const DefaultSeparator byte = ';'

const (
	operandDelim = ':'
	setDelim     = ','
)

// CheckSeparator fails with EncodingConflictError when sep could appear
// inside a mnemonic or an operand. Mnemonics use letters and '_'; literals
// use digits, letters (Inf, NaN, exponents), '.', '+', '-' and ','.
func CheckSeparator(sep byte) error {
	switch {
	case sep >= 'a' && sep <= 'z', sep >= 'A' && sep <= 'Z', sep >= '0' && sep <= '9':
		return errors.NewEncodingConflictError(sep)
	case strings.IndexByte("._+-,:", sep) >= 0:
		return errors.NewEncodingConflictError(sep)
	}
	return nil
}

// FormatFloat renders v with the shortest representation that parses back
// to the same float64.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CompareLE is the quantitative split test. A NaN value propagates so the
// following jump_false routes to the false branch.
func CompareLE(value, threshold float64) float64 {
	if math.IsNaN(value) {
		return math.NaN()
	}
	if value <= threshold {
		return 1
	}
	return 0
}

// Member is the nominal split test: exact match against the category codes.
// Values never seen in training are simply not members.
func Member(value float64, set []float64) float64 {
	if math.IsNaN(value) {
		return math.NaN()
	}
	if slices.Contains(set, value) {
		return 1
	}
	return 0
}

// Truthy reports whether a predicate takes the true branch.
func Truthy(pred float64) bool {
	return pred != 0 && !math.IsNaN(pred)
}

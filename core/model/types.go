// Package model defines the serialized forms a tree model travels in and the
// tagged results an evaluation returns.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

// ModelType tells the facade how to read a payload without looking at it.
// Negative values are the zlib-compressed variants of their positive
// counterparts.
type ModelType int

const (
	// Opcode payloads are stack machine scripts.
	Opcode ModelType = 1
	// Legacy payloads are basE91-encoded node graphs.
	Legacy ModelType = 3
	// OpcodeCompressed payloads are basE91(zlib(script)).
	OpcodeCompressed ModelType = -Opcode
	// LegacyCompressed payloads are basE91(zlib(node graph)).
	LegacyCompressed ModelType = -Legacy
)

var modelTypeNames = map[ModelType]string{
	Opcode:           "opcode",
	Legacy:           "legacy",
	OpcodeCompressed: "opcode_compressed",
	LegacyCompressed: "legacy_compressed",
}

// String returns the type's name, e.g. "legacy_compressed".
func (t ModelType) String() string {
	if name, ok := modelTypeNames[t]; ok {
		return name
	}
	return "ModelType(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is a known discriminator.
func (t ModelType) Valid() bool {
	_, ok := modelTypeNames[t]
	return ok
}

// Compressed reports whether payloads of type t are zlib-compressed.
func (t ModelType) Compressed() bool {
	return t < 0
}

// Base strips compression: Base(OpcodeCompressed) == Opcode.
func (t ModelType) Base() ModelType {
	if t < 0 {
		return -t
	}
	return t
}

// ModelTypeOf validates a raw discriminator.
func ModelTypeOf(id int) (ModelType, error) {
	t := ModelType(id)
	if !t.Valid() {
		return 0, errors.NewUnknownModelTypeError(id)
	}
	return t, nil
}

// ParseModelType accepts a name ("opcode", "legacy-compressed", ...) or a
// numeric discriminator.
func ParseModelType(s string) (ModelType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if id, err := strconv.Atoi(s); err == nil {
		return ModelTypeOf(id)
	}
	s = strings.ReplaceAll(s, "-", "_")
	for t, name := range modelTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, errors.NewValidationError("model_type", fmt.Sprintf("unknown model type %q", s), s)
}

// Set implements pflag.Value.
func (t *ModelType) Set(s string) error {
	v, err := ParseModelType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Type implements pflag.Value.
func (t *ModelType) Type() string {
	return "modelType"
}

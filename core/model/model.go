package model

import (
	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

// Model is a payload that has been routed by its ModelType but not yet
// parsed. It is either an OpcodeModel or a LegacyModel.
type Model interface {
	// ModelID returns the caller's identifier for the model.
	ModelID() string
	// Type returns the discriminator the payload arrived with.
	Type() ModelType

	isModel()
}

// OpcodeModel carries a stack machine script.
type OpcodeModel struct {
	ID       string
	Origin   ModelType
	Script   string
	Inflated bool // Script was decompressed from an OpcodeCompressed payload
}

// LegacyModel carries a legacy node graph. Encoded is the basE91 text as
// stored; Raw is set instead when the payload was compressed and has
// already been inflated to binary.
type LegacyModel struct {
	ID      string
	Origin  ModelType
	Encoded []byte
	Raw     []byte
}

func (m *OpcodeModel) ModelID() string { return m.ID }
func (m *OpcodeModel) Type() ModelType { return m.Origin }
func (*OpcodeModel) isModel()          {}

func (m *LegacyModel) ModelID() string { return m.ID }
func (m *LegacyModel) Type() ModelType { return m.Origin }
func (*LegacyModel) isModel()          {}

// FromPayload routes payload by t, inflating compressed variants.
func FromPayload(id string, t ModelType, payload []byte) (Model, error) {
	if !t.Valid() {
		return nil, errors.NewUnknownModelTypeError(int(t))
	}
	if len(payload) == 0 {
		return nil, errors.ErrEmptyPayload
	}

	switch t {
	case Opcode:
		return &OpcodeModel{ID: id, Origin: t, Script: string(payload)}, nil
	case OpcodeCompressed:
		raw, err := Decompress(payload)
		if err != nil {
			return nil, err
		}
		return &OpcodeModel{ID: id, Origin: t, Script: string(raw), Inflated: true}, nil
	case Legacy:
		return &LegacyModel{ID: id, Origin: t, Encoded: payload}, nil
	case LegacyCompressed:
		raw, err := Decompress(payload)
		if err != nil {
			return nil, err
		}
		return &LegacyModel{ID: id, Origin: t, Raw: raw}, nil
	}
	return nil, errors.NewUnknownModelTypeError(int(t))
}

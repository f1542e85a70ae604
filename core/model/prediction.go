package model

import (
	"strconv"
)

// Kind is the output kind of a Prediction.
type Kind int

const (
	// ClassIndex predictions come from classification trees.
	ClassIndex Kind = iota + 1
	// Continuous predictions come from regression trees.
	Continuous
)

func (k Kind) String() string {
	switch k {
	case ClassIndex:
		return "class"
	case Continuous:
		return "value"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Prediction is either a class index or a continuous value, as Kind says.
type Prediction struct {
	Kind  Kind
	Class int
	Value float64
}

// ClassPrediction returns a ClassIndex prediction.
func ClassPrediction(class int) Prediction {
	return Prediction{Kind: ClassIndex, Class: class}
}

// ValuePrediction returns a Continuous prediction.
func ValuePrediction(v float64) Prediction {
	return Prediction{Kind: Continuous, Value: v}
}

// Float returns the class index as a float64 or the value itself.
func (p Prediction) Float() float64 {
	if p.Kind == ClassIndex {
		return float64(p.Class)
	}
	return p.Value
}

func (p Prediction) String() string {
	if p.Kind == ClassIndex {
		return "class=" + strconv.Itoa(p.Class)
	}
	return "value=" + strconv.FormatFloat(p.Value, 'g', -1, 64)
}

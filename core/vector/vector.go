// Package vector provides the feature vector shared by every evaluation path.
//
// A Vector maps non-negative feature indices to float64 values. Reading an
// index that was never set returns the caller's default instead of failing,
// which is how missing features reach the tree evaluators.
package vector

import (
	"iter"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Vector is indexed numeric storage. Implementations are not safe for
// concurrent mutation; one evaluation owns a vector at a time.
type Vector interface {
	// Get returns the value at index i, or 0.0 when unset.
	Get(i int) float64
	// GetOr returns the value at index i, or def when unset.
	GetOr(i int, def float64) float64
	// Set stores v at index i, extending storage as needed. Setting NaN
	// marks the index unset.
	Set(i int, v float64)
	// Incr adds delta to the value at index i, starting from 0 when unset.
	Incr(i int, delta float64)
	// Each visits populated (index, value) pairs in ascending index order.
	Each() iter.Seq2[int, float64]
	// Size is one past the highest index ever set.
	Size() int
	// Clear resets the vector to the empty state.
	Clear()
	// ToArray returns a dense copy with unset slots as 0.
	ToArray() []float64
}

// DenseVector stores values in a slice. Unset slots hold NaN internally.
type DenseVector struct {
	values []float64
}

// NewDense creates an empty dense vector with room for capacity features.
func NewDense(capacity int) *DenseVector {
	return &DenseVector{values: make([]float64, 0, capacity)}
}

// FromSlice creates a dense vector over a copy of values. NaN entries are
// treated as unset, matching rows whose cells are null.
func FromSlice(values []float64) *DenseVector {
	return &DenseVector{values: slices.Clone(values)}
}

// FromRow creates a dense vector from row i of a gonum matrix.
func FromRow(m mat.Matrix, i int) *DenseVector {
	_, cols := m.Dims()
	d := &DenseVector{values: make([]float64, cols)}
	d.LoadRow(m, i)
	return d
}

// LoadRow replaces the contents of d with row i of m, reusing storage.
func (d *DenseVector) LoadRow(m mat.Matrix, i int) {
	_, cols := m.Dims()
	if r, ok := m.(mat.RawRowViewer); ok {
		d.values = append(d.values[:0], r.RawRowView(i)...)
		return
	}
	d.values = d.values[:0]
	for j := 0; j < cols; j++ {
		d.values = append(d.values, m.At(i, j))
	}
}

// Get implements Vector.
func (d *DenseVector) Get(i int) float64 {
	return d.GetOr(i, 0)
}

// GetOr implements Vector.
func (d *DenseVector) GetOr(i int, def float64) float64 {
	if i < 0 || i >= len(d.values) {
		return def
	}
	if v := d.values[i]; !math.IsNaN(v) {
		return v
	}
	return def
}

// Set implements Vector.
func (d *DenseVector) Set(i int, v float64) {
	d.grow(i)
	d.values[i] = v
}

// Incr implements Vector.
func (d *DenseVector) Incr(i int, delta float64) {
	d.grow(i)
	if math.IsNaN(d.values[i]) {
		d.values[i] = delta
		return
	}
	d.values[i] += delta
}

func (d *DenseVector) grow(i int) {
	if i < 0 {
		panic("vector: negative index")
	}
	for len(d.values) <= i {
		d.values = append(d.values, math.NaN())
	}
}

// Each implements Vector.
func (d *DenseVector) Each() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for i, v := range d.values {
			if math.IsNaN(v) {
				continue
			}
			if !yield(i, v) {
				return
			}
		}
	}
}

// Size implements Vector.
func (d *DenseVector) Size() int {
	return len(d.values)
}

// Clear implements Vector.
func (d *DenseVector) Clear() {
	d.values = d.values[:0]
}

// ToArray implements Vector.
func (d *DenseVector) ToArray() []float64 {
	out := make([]float64, len(d.values))
	for i, v := range d.values {
		if !math.IsNaN(v) {
			out[i] = v
		}
	}
	return out
}

// SparseVector stores populated indices in a map.
type SparseVector struct {
	values map[int]float64
	size   int
}

// NewSparse creates an empty sparse vector.
func NewSparse() *SparseVector {
	return &SparseVector{values: make(map[int]float64)}
}

// Get implements Vector.
func (s *SparseVector) Get(i int) float64 {
	return s.GetOr(i, 0)
}

// GetOr implements Vector.
func (s *SparseVector) GetOr(i int, def float64) float64 {
	if v, ok := s.values[i]; ok {
		return v
	}
	return def
}

// Set implements Vector.
func (s *SparseVector) Set(i int, v float64) {
	if i < 0 {
		panic("vector: negative index")
	}
	if i >= s.size {
		s.size = i + 1
	}
	if math.IsNaN(v) {
		delete(s.values, i)
		return
	}
	s.values[i] = v
}

// Incr implements Vector.
func (s *SparseVector) Incr(i int, delta float64) {
	s.Set(i, s.GetOr(i, 0)+delta)
}

// Each implements Vector. Indices are sorted on every call.
func (s *SparseVector) Each() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		keys := make([]int, 0, len(s.values))
		for k := range s.values {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !yield(k, s.values[k]) {
				return
			}
		}
	}
}

// Size implements Vector.
func (s *SparseVector) Size() int {
	return s.size
}

// Clear implements Vector.
func (s *SparseVector) Clear() {
	clear(s.values)
	s.size = 0
}

// ToArray implements Vector.
func (s *SparseVector) ToArray() []float64 {
	out := make([]float64, s.size)
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

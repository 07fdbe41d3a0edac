// Package composite mixes weighted scalar fields into one normalized field.
package composite

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/noisetex/internal/field"
)

// Input is one weighted contribution. Field is expected to be normalized to [0,1].
type Input struct {
	Field  *field.Field
	Weight float64
}

// Sum returns Σ weight_i * field_i without normalization.
// All inputs must share dimensions and carry a non-negative weight.
func Sum(inputs []Input) (*field.Field, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs to composite")
	}
	first := inputs[0].Field
	if first == nil {
		return nil, fmt.Errorf("input 0 has no field")
	}
	return SumSized(first.W, first.H, inputs)
}

// SumSized is Sum with explicit dimensions, so an empty input list yields an
// all-zero field instead of an error.
func SumSized(w, h int, inputs []Input) (*field.Field, error) {
	dst, err := field.New(w, h)
	if err != nil {
		return nil, err
	}

	for i, in := range inputs {
		if in.Field == nil {
			return nil, fmt.Errorf("input %d has no field", i)
		}
		if in.Field.W != w || in.Field.H != h {
			return nil, fmt.Errorf("input %d size %dx%d does not match expected %dx%d", i, in.Field.W, in.Field.H, w, h)
		}
		if in.Weight < 0 || math.IsNaN(in.Weight) {
			return nil, fmt.Errorf("input %d weight must be non-negative, got %v", i, in.Weight)
		}
		if in.Weight == 0 {
			continue
		}
		for j, v := range in.Field.Data {
			dst.Data[j] += in.Weight * v
		}
	}

	return dst, nil
}

// Composite returns the weighted sum of inputs re-normalized to [0,1].
// Weights need not sum to one; only their relative share matters.
func Composite(inputs []Input) (*field.Field, error) {
	sum, err := Sum(inputs)
	if err != nil {
		return nil, err
	}
	return sum.Normalize(), nil
}

// CompositeSized is Composite with explicit dimensions. No inputs (or only
// zero-weight inputs) produce an all-zero field.
func CompositeSized(w, h int, inputs []Input) (*field.Field, error) {
	sum, err := SumSized(w, h, inputs)
	if err != nil {
		return nil, err
	}
	return sum.Normalize(), nil
}

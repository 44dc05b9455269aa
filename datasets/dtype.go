// Package datasets generates synthetic regression problems, splits them into train
// and test rows and wraps matrices in containers that carry their element type.
package datasets

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

// DType is the element type a dataset is stored in.
type DType int

const (
	Float64 DType = iota
	Float32
)

func (d DType) String() string {
	switch d {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	if d == Float32 {
		return 4
	}
	return 8
}

// Round returns v as stored in this type.
func (d DType) Round(v float64) float64 {
	if d == Float32 {
		return float64(float32(v))
	}
	return v
}

// ParseDType accepts "float32" and "float64".
func ParseDType(s string) (DType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return 0, errors.NewValidationError("dtype", "must be 'float32' or 'float64'", s)
	}
}

// Typed is implemented by matrices that know their element type.
type Typed interface {
	mat.Matrix
	DType() DType
}

// DTypeOf returns the element type of m, Float64 for plain matrices.
func DTypeOf(m mat.Matrix) DType {
	if t, ok := m.(Typed); ok {
		return t.DType()
	}
	return Float64
}

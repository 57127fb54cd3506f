package embedding

import (
	"context"
	"errors"
	"math"
)

// Encoder converts texts into embedding vectors of a fixed dimension.
// Implementations are safe for concurrent use once constructed.
type Encoder interface {
	Name() string
	Dimension() int
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrDimensionMismatch is returned when an encoder yields vectors of an unexpected size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Normalize scales v to unit length in place. Zero vectors are left untouched.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

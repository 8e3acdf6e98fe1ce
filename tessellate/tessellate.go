// Package tessellate turns land polygons into point clouds on the unit
// sphere: evenly subdivided outline dots and an offset lattice of
// interior fill dots. Kernels are pure functions; Runner executes them
// on one-shot worker goroutines and the caches keep finished layers per
// tiling density.
package tessellate

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is a flat list of xyz triples.
type Buffer []float32

// Points returns the number of xyz triples in b.
func (b Buffer) Points() int { return len(b) / 3 }

// MarshalBinary encodes b as little-endian float32 values.
func (b Buffer) MarshalBinary() ([]byte, error) {
	out := make([]byte, 4*len(b))
	for i, v := range b {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out, nil
}

// UnmarshalBinary decodes little-endian float32 values into b.
func (b *Buffer) UnmarshalBinary(data []byte) error {
	if len(data)%12 != 0 {
		return fmt.Errorf("point buffer of %d bytes is not a whole number of xyz triples", len(data))
	}
	out := make(Buffer, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	*b = out
	return nil
}

// Layers is the pair of point clouds built for one tiling density.
// Buffers are shared between cache readers and must not be modified.
type Layers struct {
	Edge Buffer
	Fill Buffer
}

// Kind names a tessellation kernel.
type Kind string

const (
	KindEdge Kind = "edge"
	KindFill Kind = "fill"
)

// Density limits.
const (
	// MinEdgeDensityDeg is the smallest edge subdivision step.
	MinEdgeDensityDeg = 0.2
	// MaxFillPoints caps the fill layer.
	MaxFillPoints = 120000
)

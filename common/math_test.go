package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityResetsMatrix(t *testing.T) {
	m := make([]float32, 16)
	for i := range m {
		m[i] = 7
	}
	Identity(m)
	for i, v := range m {
		if i == 0 || i == 5 || i == 10 || i == 15 {
			assert.Equal(t, float32(1), v, "diagonal element %d", i)
		} else {
			assert.Equal(t, float32(0), v, "element %d", i)
		}
	}
}

func TestMat4ReshapesColumns(t *testing.T) {
	flat := make([]float32, 16)
	for i := range flat {
		flat[i] = float32(i)
	}
	out := Mat4(flat)
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			assert.Equal(t, float32(c*4+r), out[c][r])
		}
	}
}

func TestMul4IdentityIsNeutral(t *testing.T) {
	id := make([]float32, 16)
	Identity(id)
	m := make([]float32, 16)
	for i := range m {
		m[i] = float32(i) * 0.5
	}

	out := make([]float32, 16)
	Mul4(out, id, m)
	assert.Equal(t, m, out)
	Mul4(out, m, id)
	assert.Equal(t, m, out)
}

func TestMul4AppliesRightHandSideFirst(t *testing.T) {
	scale := make([]float32, 16)
	Identity(scale)
	scale[0], scale[5], scale[10] = 2, 2, 2

	translate := make([]float32, 16)
	Identity(translate)
	translate[12], translate[13], translate[14] = 1, 2, 3

	// scale * translate moves first, then doubles the result.
	out := make([]float32, 16)
	Mul4(out, scale, translate)
	assert.Equal(t, float32(2), out[12])
	assert.Equal(t, float32(4), out[13])
	assert.Equal(t, float32(6), out[14])
	assert.Equal(t, float32(2), out[0])
	assert.Equal(t, float32(1), out[15])
}

func TestMul4AllowsOutAliasingInput(t *testing.T) {
	m := make([]float32, 16)
	Identity(m)
	m[0] = 3

	want := make([]float32, 16)
	Mul4(want, m, m)
	Mul4(m, m, m)
	assert.Equal(t, want, m)
}

func TestRotationZQuarterTurn(t *testing.T) {
	m := make([]float32, 16)
	RotationZ(m, float32(math.Pi/2))

	assert.InDelta(t, 0, m[0], 1e-6)
	assert.InDelta(t, 1, m[1], 1e-6)
	assert.InDelta(t, -1, m[4], 1e-6)
	assert.InDelta(t, 0, m[5], 1e-6)
	assert.Equal(t, float32(1), m[10])
	assert.Equal(t, float32(1), m[15])
}

func TestSliceToBytesSharesMemory(t *testing.T) {
	s := []uint32{0}
	b := SliceToBytes(s)
	require.Len(t, b, 4)

	s[0] = 0xFFFFFFFF
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, b)
}

func TestSliceToBytesEmpty(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32(nil)))
	assert.Nil(t, SliceToBytes([]float32{}))
}

func TestStructToBytesSharesMemory(t *testing.T) {
	v := struct{ A, B uint32 }{}
	b := StructToBytes(&v)
	require.Len(t, b, 8)

	v.B = 0xFFFFFFFF
	assert.Equal(t, []byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}, b)
}

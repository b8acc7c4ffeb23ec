package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVarsKeepInsertionOrder(t *testing.T) {
	v := NewVars().Set("zeta", 1).Set("alpha", 2).Set("mid", 3)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, v.Keys())

	v.Set("alpha", 9)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, v.Keys(), "overwrite must not reorder")
	got, ok := v.Get("alpha")
	assert.True(t, ok)
	assert.Equal(t, 9, got)
	assert.Equal(t, 3, v.Len())
}

func TestVarsMergeExtraWins(t *testing.T) {
	base := NewVars().Set("scale", 1.0).Set("color", "red")
	extra := NewVars().Set("scale", 2.0).Set("offset", 5)

	merged := base.Merge(extra)
	got, _ := merged.Get("scale")
	assert.Equal(t, 2.0, got)
	got, _ = merged.Get("color")
	assert.Equal(t, "red", got)
	got, _ = merged.Get("offset")
	assert.Equal(t, 5, got)

	got, _ = base.Get("scale")
	assert.Equal(t, 1.0, got, "merge must not mutate the receiver")
	assert.Equal(t, 2, base.Len())

	assert.True(t, base.Merge(nil).Equal(base))
}

func TestVarsEqualIgnoresOrder(t *testing.T) {
	a := NewVars().Set("x", 1).Set("y", []int{1, 2})
	b := NewVars().Set("y", []int{1, 2}).Set("x", 1)
	assert.True(t, a.Equal(b))

	b.Set("y", []int{1, 3})
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(NewVars().Set("x", 1)))
}

func TestVarsCloneIsIndependent(t *testing.T) {
	a := NewVars().Set("x", 1)
	b := a.Clone()
	b.Set("x", 2).Set("y", 3)

	got, _ := a.Get("x")
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestVarsCanonicalStable(t *testing.T) {
	a := NewVars().Set("b", 2).Set("a", 1)
	b := NewVars().Set("a", 1).Set("b", 2)
	assert.Equal(t, a.canonical(), b.canonical())
	assert.NotEqual(t, a.canonical(), NewVars().Set("a", 1).Set("b", 3).canonical())
}

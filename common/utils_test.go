package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 5, Coalesce(0, 0, 5))
	assert.Equal(t, 0, Coalesce(0, 0))
	assert.Equal(t, "x", Coalesce("", "x", "y"))
	assert.Equal(t, float32(1.5), Coalesce(float32(0), 1.5))
}

package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2_GridHelpers(t *testing.T) {
	size := Vec2{X: 4, Y: 3}

	assert.Equal(t, 12, size.Area())
	assert.True(t, size.Positive())
	assert.False(t, Vec2{X: 0, Y: 3}.Positive())

	// Индекс row-major: x + width*y
	assert.Equal(t, 0, size.Index(0, 0))
	assert.Equal(t, 6, size.Index(2, 1))
	assert.Equal(t, 11, size.Index(3, 2))

	assert.True(t, size.Contains(3, 2))
	assert.False(t, size.Contains(4, 0))
	assert.False(t, size.Contains(0, -1))
}

func TestRect_Corners(t *testing.T) {
	r := Rect{X: 48, Y: 16, Width: 16, Height: 16}

	assert.Equal(t, Vec2{X: 48, Y: 16}, r.Min())
	assert.Equal(t, Vec2{X: 64, Y: 32}, r.Max())
	assert.Equal(t, "(48,16,16,16)", r.String())
}

package vec

import "fmt"

// Rect - прямоугольник в пиксельном пространстве изображения.
// Начало координат в левом верхнем углу.
type Rect struct {
	X, Y          int
	Width, Height int
}

// String возвращает "(x,y,w,h)"
func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.X, r.Y, r.Width, r.Height)
}

// Min возвращает левый верхний угол
func (r Rect) Min() Vec2 {
	return Vec2{X: r.X, Y: r.Y}
}

// Max возвращает правый нижний угол (не включительно)
func (r Rect) Max() Vec2 {
	return Vec2{X: r.X + r.Width, Y: r.Y + r.Height}
}

package vec

// Vec2 представляет 2D размеры или координаты в клетках/пикселях
type Vec2 struct {
	X, Y int
}

// Area возвращает произведение компонент (число клеток сетки)
func (v Vec2) Area() int {
	return v.X * v.Y
}

// Positive сообщает, что обе компоненты строго больше нуля
func (v Vec2) Positive() bool {
	return v.X > 0 && v.Y > 0
}

// Index возвращает индекс в плоском массиве row-major для сетки шириной v.X
func (v Vec2) Index(x, y int) int {
	return x + v.X*y
}

// Contains проверяет, что (x, y) лежит внутри сетки размера v
func (v Vec2) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < v.X && y < v.Y
}

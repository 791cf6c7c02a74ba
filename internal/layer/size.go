package layer

import "fmt"

// Size is the width and height of a feature map, kernel or pooling window.
// X is the width (matrix columns), Y the height (matrix rows).
type Size struct {
	X int
	Y int
}

// NewSize returns a Size after checking both dimensions are positive.
func NewSize(x, y int) (Size, error) {
	if x <= 0 || y <= 0 {
		return Size{}, fmt.Errorf("size %dx%d: dimensions must be positive: %w", x, y, ErrShapeMismatch)
	}
	return Size{X: x, Y: y}, nil
}

// Divide returns the size of a map pooled with the window o.
// Both dimensions must divide evenly; the result is never rounded.
func (s Size) Divide(o Size) (Size, error) {
	if o.X <= 0 || o.Y <= 0 || s.X%o.X != 0 || s.Y%o.Y != 0 {
		return Size{}, fmt.Errorf("%s cannot be divided by %s: %w", s, o, ErrShapeMismatch)
	}
	return Size{X: s.X / o.X, Y: s.Y / o.Y}, nil
}

// Subtract returns (s - o + pad) per dimension. With pad 1 this is the
// size of a valid convolution of an s map with an o kernel.
func (s Size) Subtract(o Size, pad int) Size {
	return Size{X: s.X - o.X + pad, Y: s.Y - o.Y + pad}
}

// Area returns X*Y.
func (s Size) Area() int {
	return s.X * s.Y
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.X > 0 && s.Y > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.X, s.Y)
}

package server

// rect is an axis-aligned rectangle centered on (X, Y).
type rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// rectsOverlap reports whether two centered rectangles overlap. The interval
// comparison is strict on both axes, so rectangles that merely touch edges do
// not collide.
func rectsOverlap(a, b rect) bool {
	halfW1 := a.Width / 2
	halfW2 := b.Width / 2
	halfH1 := a.Height / 2
	halfH2 := b.Height / 2

	return a.X-halfW1 < b.X+halfW2 &&
		a.X+halfW1 > b.X-halfW2 &&
		a.Y-halfH1 < b.Y+halfH2 &&
		a.Y+halfH1 > b.Y-halfH2
}

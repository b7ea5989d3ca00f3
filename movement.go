package server

// moveIntent carries the four directional bits of one input. Opposite
// directions cancel each other rather than favoring either one.
type moveIntent struct {
	Left  bool
	Right bool
	Up    bool
	Down  bool
}

// resolveMovement advances a centered width×height entity one tick in the
// direction of the intent and clamps the result so the entity's bounding box
// stays fully inside the world. Each axis is resolved independently, so
// diagonal movement covers more ground than axial movement.
func resolveMovement(x, y, width, height float64, intent moveIntent) (float64, float64) {
	newX := x
	newY := y

	if !(intent.Left && intent.Right) {
		if intent.Left {
			newX -= moveSpeed
		}
		if intent.Right {
			newX += moveSpeed
		}
	}
	if !(intent.Up && intent.Down) {
		if intent.Up {
			newY -= moveSpeed
		}
		if intent.Down {
			newY += moveSpeed
		}
	}

	halfW := width / 2
	halfH := height / 2
	return clamp(newX, halfW, worldWidth-halfW), clamp(newY, halfH, worldHeight-halfH)
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

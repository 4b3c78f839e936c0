package service

// Band classifies a basis percentage for display.
// -1 backwardation, 0 flat, +1 contango (pure decision)
func Band(percent, threshold float64) int {
	if percent >= threshold {
		return +1
	}
	if percent <= -threshold {
		return -1
	}
	return 0
}

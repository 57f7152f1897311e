package canvas

import (
	"strings"

	"drawza/internal/core/domain"
)

// Text metrics are estimated without font access: an average glyph is
// 0.6 em wide and a line is 1.2 em tall.
const (
	textCharWidthFactor  = 0.6
	textLineHeightFactor = 1.2
)

// MeasureText estimates the bounding size of a text block at the given
// font size.
func MeasureText(text string, fontSize float64) (width, height float64) {
	if fontSize <= 0 {
		fontSize = domain.DefaultFontSize
	}
	if text == "" {
		return 0, fontSize * textLineHeightFactor
	}

	lines := strings.Split(text, "\n")
	longest := 0
	for _, line := range lines {
		if n := len([]rune(line)); n > longest {
			longest = n
		}
	}
	width = float64(longest) * fontSize * textCharWidthFactor
	height = float64(len(lines)) * fontSize * textLineHeightFactor
	return width, height
}

package evidence

import (
	"image"
	"strings"

	"github.com/agenthands/clipsolve/internal/imaging"
)

const (
	darkLumaCutoff = 60
	darkShareFloor = 0.60
)

// IsDarkImage is the cheap detector that gates the low-contrast recovery
// pass: a "dark" filename hint, or a luminance histogram skewed heavily
// toward black.
func IsDarkImage(filename string, img image.Image) bool {
	if strings.Contains(strings.ToLower(filename), "dark") {
		return true
	}
	if img == nil {
		return false
	}
	return imaging.DarkShare(img, darkLumaCutoff) > darkShareFloor
}

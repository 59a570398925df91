package compositor

import (
	"image"
	"math"
)

// Rect is a destination rectangle in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// Bounds rounds r to the integer rectangle images are drawn into.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)),
		int(math.Round(r.Y+r.H)),
	)
}

// Fit places a srcW×srcH image inside a dstW×dstH canvas with
// aspect-fit-contain. A relatively wider image spans the full width and is
// centered vertically; otherwise it spans the full height and is centered
// horizontally.
func Fit(srcW, srcH, dstW, dstH int) Rect {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Rect{}
	}
	imgAspect := float64(srcW) / float64(srcH)
	canvasAspect := float64(dstW) / float64(dstH)

	if imgAspect > canvasAspect {
		w := float64(dstW)
		h := w / imgAspect
		return Rect{X: 0, Y: (float64(dstH) - h) / 2, W: w, H: h}
	}
	h := float64(dstH)
	w := h * imgAspect
	return Rect{X: (float64(dstW) - w) / 2, Y: 0, W: w, H: h}
}

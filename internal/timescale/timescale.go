// Package timescale converts between timeline seconds and pixel offsets.
// The scale is a presentation value only; rendering never depends on it.
package timescale

import "math"

const (
	MinScale     = 10.0
	MaxScale     = 200.0
	DefaultScale = 100.0
)

// TimeToPixels returns the pixel offset of t seconds at the given scale.
func TimeToPixels(t, scale float64) float64 {
	return t * Clamp(scale)
}

// PixelsToTime returns the time in seconds at pixel offset px.
func PixelsToTime(px, scale float64) float64 {
	return px / Clamp(scale)
}

// Clamp limits a pixels-per-second value to [MinScale, MaxScale].
// NaN and non-positive values collapse to MinScale.
func Clamp(scale float64) float64 {
	if math.IsNaN(scale) || scale < MinScale {
		return MinScale
	}
	if scale > MaxScale {
		return MaxScale
	}
	return scale
}

// FitScale returns the scale that fits audioDuration seconds into containerWidth pixels.
func FitScale(containerWidth, audioDuration float64) float64 {
	if audioDuration <= 0 || containerWidth <= 0 {
		return DefaultScale
	}
	return Clamp(containerWidth / audioDuration)
}

// Zoom multiplies scale by factor and clamps the result.
func Zoom(scale, factor float64) float64 {
	return Clamp(scale * factor)
}

// TimelineWidth is the pixel width needed to lay out audioDuration seconds.
func TimelineWidth(audioDuration, scale float64) int {
	if audioDuration <= 0 {
		return 0
	}
	return int(math.Ceil(TimeToPixels(audioDuration, scale)))
}

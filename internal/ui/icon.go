package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var iconBytes = drawIcon(32)

// drawIcon renders the tray glyph: a rounded accent square with a play
// triangle cut out of it.
func drawIcon(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	accent := color.NRGBA{R: 0xe2, G: 0x3b, B: 0x5a, A: 0xff}
	radius := size / 5

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !insideRounded(x, y, size, radius) {
				continue
			}
			if insidePlay(x, y, size) {
				img.SetNRGBA(x, y, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
				continue
			}
			img.SetNRGBA(x, y, accent)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func insideRounded(x, y, size, r int) bool {
	cx, cy := x, y
	switch {
	case x < r:
		cx = r
	case x >= size-r:
		cx = size - r - 1
	}
	switch {
	case y < r:
		cy = r
	case y >= size-r:
		cy = size - r - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

func insidePlay(x, y, size int) bool {
	left, right := size*3/8, size*3/4
	top, bottom := size/4, size*3/4
	if x < left || x > right || y < top || y > bottom {
		return false
	}
	mid := (top + bottom) / 2
	half := (bottom - top) / 2
	// The triangle narrows linearly from the left edge to the tip.
	reach := half * (right - x) / (right - left)
	return y >= mid-reach && y <= mid+reach
}

package compositor

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// Assets holds decoded media pre-scaled to their contain rectangle on the
// canvas, so per-frame drawing is a plain copy.
type Assets struct {
	width  int
	height int

	mu     sync.RWMutex
	images map[string]*image.RGBA
}

// NewAssets creates an empty asset set for a width×height canvas.
func NewAssets(width, height int) *Assets {
	return &Assets{width: width, height: height, images: make(map[string]*image.RGBA)}
}

// Put scales img into place and stores it under id.
func (a *Assets) Put(id string, img image.Image) {
	sb := img.Bounds()
	r := Fit(sb.Dx(), sb.Dy(), a.width, a.height).Bounds()
	if r.Empty() {
		return
	}
	scaled := image.NewRGBA(r)
	draw.CatmullRom.Scale(scaled, r, img, sb, draw.Src, nil)

	a.mu.Lock()
	a.images[id] = scaled
	a.mu.Unlock()
}

// Get returns the placed image for id.
func (a *Assets) Get(id string) (*image.RGBA, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	img, ok := a.images[id]
	return img, ok
}

func (a *Assets) Has(id string) bool {
	_, ok := a.Get(id)
	return ok
}

func (a *Assets) Delete(id string) {
	a.mu.Lock()
	delete(a.images, id)
	a.mu.Unlock()
}

func (a *Assets) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.images)
}

// Size returns the canvas size the assets were placed for.
func (a *Assets) Size() (int, int) {
	return a.width, a.height
}

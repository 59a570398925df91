package studio

import (
	"context"
	"image"
	"sync"

	"github.com/indii/reelstudio/internal/compositor"
	"github.com/indii/reelstudio/internal/playback"
	"github.com/indii/reelstudio/internal/timeline"
)

// previewCache keeps the decoded images of one session between preview
// renders. Sources that failed once are not retried until their media item
// changes.
type previewCache struct {
	mu     sync.Mutex
	assets *compositor.Assets
	srcs   map[string]string
	failed map[string]string
}

func newPreviewCache() *previewCache {
	return &previewCache{
		assets: compositor.NewAssets(compositor.CanvasWidth, compositor.CanvasHeight),
		srcs:   make(map[string]string),
		failed: make(map[string]string),
	}
}

// missing returns the referenced image items that are neither cached nor
// known to fail.
func (p *previewCache) missing(snap timeline.Snapshot) []timeline.MediaItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool)
	var items []timeline.MediaItem
	for _, c := range snap.Clips {
		if c.Track != timeline.TrackImage || seen[c.MediaID] {
			continue
		}
		seen[c.MediaID] = true
		m, ok := snap.MediaByID(c.MediaID)
		if !ok {
			continue
		}
		if p.srcs[m.ID] == m.Src || p.failed[m.ID] == m.Src {
			continue
		}
		items = append(items, m)
	}
	return items
}

// Preview renders the live frame of a project at its clock position.
func (s *Service) Preview(ctx context.Context, id string) (*image.RGBA, playback.Status, error) {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return nil, playback.Status{}, err
	}
	snap := sess.Store.Snapshot()
	cache := sess.preview

	if items := cache.missing(snap); len(items) > 0 {
		report := s.loader.LoadAll(ctx, items)
		cache.mu.Lock()
		for _, l := range report.Loaded {
			cache.assets.Put(l.ID, l.Image)
			if m, ok := snap.MediaByID(l.ID); ok {
				cache.srcs[l.ID] = m.Src
				delete(cache.failed, l.ID)
			}
		}
		for _, f := range report.Failed {
			cache.failed[f.ID] = f.Src
		}
		cache.mu.Unlock()
	}

	comp, err := compositor.New(snap, cache.assets, compositor.WithStyle(s.style), compositor.WithLogger(s.logger))
	if err != nil {
		return nil, playback.Status{}, err
	}
	img, status := playback.Preview(sess.Clock, comp)
	return img, status, nil
}

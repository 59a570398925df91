// Package frameindex precomputes which clips and annotations are active at
// every frame of an export so the render loop never scans all entities.
package frameindex

import (
	"math"

	"github.com/indii/reelstudio/internal/timeline"
)

// DefaultFrameRate is the fixed export frame rate.
const DefaultFrameRate = 30

// AnnotationRef is an annotation active at a frame together with the frame
// its progress curve starts from.
type AnnotationRef struct {
	Annotation timeline.Annotation
	ExactFrame int
}

// Index maps frame numbers in [0, FrameCount) to the entities active there.
// An Index is built once from a snapshot and never mutated.
type Index struct {
	frameRate   int
	frameCount  int
	clips       [][]timeline.Clip
	annotations [][]AnnotationRef
}

// FrameCount returns ceil(audioDuration*frameRate).
func FrameCount(audioDuration float64, frameRate int) int {
	if audioDuration <= 0 || frameRate <= 0 {
		return 0
	}
	return int(math.Ceil(audioDuration * float64(frameRate)))
}

// Span returns the half-open frame range [start, end) an entity covering
// [startTime, startTime+duration) occupies, clipped to [0, frameCount).
func Span(startTime, duration float64, frameRate, frameCount int) (int, int) {
	fr := float64(frameRate)
	start := int(math.Floor(startTime * fr))
	end := int(math.Ceil((startTime + duration) * fr))
	if start < 0 {
		start = 0
	}
	if end > frameCount {
		end = frameCount
	}
	if end < start {
		end = start
	}
	return start, end
}

// Build derives an Index from snap. A non-positive frameRate uses
// DefaultFrameRate.
func Build(snap timeline.Snapshot, frameRate int) *Index {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	n := FrameCount(snap.AudioDuration, frameRate)
	idx := &Index{
		frameRate:   frameRate,
		frameCount:  n,
		clips:       make([][]timeline.Clip, n),
		annotations: make([][]AnnotationRef, n),
	}

	for _, c := range snap.Clips {
		start, end := Span(c.StartTime, c.Duration, frameRate, n)
		for f := start; f < end; f++ {
			idx.clips[f] = append(idx.clips[f], c)
		}
	}

	for _, a := range snap.Annotations {
		ref := AnnotationRef{
			Annotation: a,
			ExactFrame: int(math.Round(a.Time * float64(frameRate))),
		}
		start, end := Span(a.Time, a.Duration, frameRate, n)
		for f := start; f < end; f++ {
			idx.annotations[f] = append(idx.annotations[f], ref)
		}
	}

	return idx
}

func (i *Index) FrameRate() int  { return i.frameRate }
func (i *Index) FrameCount() int { return i.frameCount }

// Clips returns the clips active at frame f. The slice must not be modified.
func (i *Index) Clips(f int) []timeline.Clip {
	if f < 0 || f >= i.frameCount {
		return nil
	}
	return i.clips[f]
}

// Annotations returns the annotations active at frame f.
func (i *Index) Annotations(f int) []AnnotationRef {
	if f < 0 || f >= i.frameCount {
		return nil
	}
	return i.annotations[f]
}

// TimeOf returns the timestamp of frame f in seconds.
func (i *Index) TimeOf(f int) float64 {
	return float64(f) / float64(i.frameRate)
}

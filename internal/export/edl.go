package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/indii/reelstudio/internal/timeline"
)

// Event is one image clip placed on the record timeline.
type Event struct {
	Name     string
	Source   string
	RecordIn float64
	Duration float64
}

// Events lists the image track of snap in timeline order. The source of a
// still is always read from zero.
func Events(snap timeline.Snapshot) []Event {
	clips := make([]timeline.Clip, 0, len(snap.Clips))
	for _, c := range snap.Clips {
		if c.Track == timeline.TrackImage {
			clips = append(clips, c)
		}
	}
	sort.SliceStable(clips, func(i, j int) bool { return clips[i].StartTime < clips[j].StartTime })

	events := make([]Event, 0, len(clips))
	for _, c := range clips {
		ev := Event{Name: c.MediaID, RecordIn: c.StartTime, Duration: c.Duration}
		if m, ok := snap.MediaByID(c.MediaID); ok {
			ev.Name = m.Name
			ev.Source = m.Src
			if strings.HasPrefix(m.Src, "data:") {
				ev.Source = "(embedded)"
			}
		}
		if c.IsStartScreen {
			ev.Name = "START SCREEN " + ev.Name
		}
		events = append(events, ev)
	}
	return events
}

// GenerateEDL renders the image track as a CMX3600 edit list.
func GenerateEDL(snap timeline.Snapshot, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	dropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{"TITLE: " + title}
	if dropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, ev := range Events(snap) {
		inMs := secondsToMs(ev.RecordIn)
		durMs := secondsToMs(ev.Duration)
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				msToTimecode(0, fps), msToTimecode(durMs, fps),
				msToTimecode(inMs, fps), msToTimecode(inMs+durMs, fps)),
			"* FROM CLIP NAME:  "+ev.Name,
		)
		if ev.Source != "" {
			lines = append(lines, "* SOURCE FILE:  "+ev.Source)
		}
	}
	if snap.AudioDuration > 0 {
		lines = append(lines, fmt.Sprintf("* AUDIO DURATION:  %s", msToTimecode(secondsToMs(snap.AudioDuration), fps)))
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToMs(s float64) int {
	return int(math.Round(s * 1000))
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, totalSeconds/60%60, totalSeconds%60, frames)
}

package project

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/indii/reelstudio/internal/frameindex"
	"github.com/indii/reelstudio/internal/timeline"
)

func buildStore(t *testing.T) *timeline.Store {
	t.Helper()
	st := timeline.NewStore()
	st.SetAudioDuration(13)
	st.SetVideoTitle("Summer")
	start := st.AddMedia(timeline.MediaItem{Name: "start.webp", MimeType: "image/webp", Src: "startscreen.webp"})
	img := st.AddMedia(timeline.MediaItem{Name: "a.png", MimeType: "image/png", Src: "data:image/png;base64,AAAA"})
	st.EnsureStartScreen(start)
	if _, err := st.AddClip(img, 3, 4); err != nil {
		t.Fatalf("AddClip: %v", err)
	}
	if _, err := st.AddClip(img, 9, 0); err != nil {
		t.Fatalf("AddClip: %v", err)
	}
	if _, err := st.AddAnnotation(5, 40, 60, timeline.StyleHighlight); err != nil {
		t.Fatalf("AddAnnotation: %v", err)
	}
	return st
}

func TestRoundTrip(t *testing.T) {
	st := buildStore(t)
	audio := &Asset{ID: "aud", Name: "song.mp3", Type: "audio/mpeg", Src: "song.mp3"}
	doc := FromStore("Trip", st, audio)

	var buf bytes.Buffer
	if err := Save(&buf, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, doc) {
		t.Fatalf("Load(Save(doc)) differs:\n got %+v\nwant %+v", loaded, doc)
	}

	restored := timeline.NewStore()
	loaded.Apply(restored)

	a, b := st.Snapshot(), restored.Snapshot()
	if !reflect.DeepEqual(a.Clips, b.Clips) {
		t.Errorf("clips differ:\n got %+v\nwant %+v", b.Clips, a.Clips)
	}
	if !reflect.DeepEqual(a.Annotations, b.Annotations) {
		t.Errorf("annotations differ")
	}
	if a.VideoTitle != b.VideoTitle || a.AudioDuration != b.AudioDuration || a.StartScreenID != b.StartScreenID {
		t.Errorf("scalar fields differ: %+v vs %+v", a, b)
	}
	if !reflect.DeepEqual(a.Media, b.Media) {
		t.Errorf("media differ")
	}

	ia, ib := frameindex.Build(a, 30), frameindex.Build(b, 30)
	for f := 0; f < ia.FrameCount(); f++ {
		if !reflect.DeepEqual(ia.Clips(f), ib.Clips(f)) || !reflect.DeepEqual(ia.Annotations(f), ib.Annotations(f)) {
			t.Fatalf("frame index differs at frame %d", f)
		}
	}
}

func TestLoad_TouchActionsAlias(t *testing.T) {
	const src = `{"name":"","clips":[],"touchActions":[{"id":"t1","time":2,"x":10,"y":20,"duration":2}],"audioDuration":5}`
	doc, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Name != DefaultName {
		t.Errorf("Name = %q, want default", doc.Name)
	}
	if len(doc.Highlights) != 1 || doc.Highlights[0].Style != timeline.StyleTouch {
		t.Errorf("Highlights = %+v", doc.Highlights)
	}
}

func TestLoad_Invalid(t *testing.T) {
	for _, src := range []string{
		`not json`,
		`{"audioDuration":-1}`,
		`{"audioDuration":5,"clips":[{"id":"c","startTime":-1,"duration":1}]}`,
	} {
		if _, err := Load(strings.NewReader(src)); !errors.Is(err, ErrInvalid) {
			t.Errorf("Load(%s) err = %v, want ErrInvalid", src, err)
		}
	}
}

func TestApply_StartScreenFromImageField(t *testing.T) {
	doc := &Document{AudioDuration: 10, StartScreenImage: "startscreen.webp"}
	st := timeline.NewStore()
	doc.Apply(st)

	snap := st.Snapshot()
	clip, ok := snap.StartScreenClip()
	if !ok {
		t.Fatal("no start-screen clip created")
	}
	m, ok := snap.MediaByID(clip.MediaID)
	if !ok || m.MimeType != "image/webp" || m.Name != "startscreen.webp" {
		t.Errorf("start-screen media = %+v", m)
	}
}

func TestSave_EmptyArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := Save(&buf, &Document{Name: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, want := range []string{`"clips":[]`, `"highlights":[]`, `"mediaItems":[]`, `"audioFile":null`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("saved json missing %s: %s", want, buf.String())
		}
	}
}

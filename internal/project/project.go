// Package project reads and writes the saved project document.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/indii/reelstudio/internal/timeline"
)

// Extension is the file extension of saved projects.
const Extension = ".indii"

const DefaultName = "Imported Project"

var ErrInvalid = errors.New("invalid project document")

// Asset is a media reference as stored in the document.
type Asset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Src  string `json:"src"`
}

// Document is the persisted project.
type Document struct {
	Name          string                `json:"name"`
	Clips         []timeline.Clip       `json:"clips"`
	Highlights    []timeline.Annotation `json:"highlights"`
	AudioDuration float64               `json:"audioDuration"`
	VideoTitle    string                `json:"videoTitle"`
	// StartScreenImage is the src of the start-screen asset.
	StartScreenImage string  `json:"startScreenImage,omitempty"`
	MediaItems       []Asset `json:"mediaItems"`
	AudioFile        *Asset  `json:"audioFile"`
}

// wireDocument accepts the older touchActions key for annotations.
type wireDocument struct {
	Document
	TouchActions []timeline.Annotation `json:"touchActions,omitempty"`
}

// Save writes doc as JSON.
func Save(w io.Writer, doc *Document) error {
	out := *doc
	if out.Clips == nil {
		out.Clips = []timeline.Clip{}
	}
	if out.Highlights == nil {
		out.Highlights = []timeline.Annotation{}
	}
	if out.MediaItems == nil {
		out.MediaItems = []Asset{}
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	return nil
}

// Load parses a project document. Annotations saved under touchActions are
// merged into Highlights with the touch style.
func Load(r io.Reader) (*Document, error) {
	var wire wireDocument
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	doc := wire.Document
	for _, a := range wire.TouchActions {
		if a.Style == "" {
			a.Style = timeline.StyleTouch
		}
		doc.Highlights = append(doc.Highlights, a)
	}
	if strings.TrimSpace(doc.Name) == "" {
		doc.Name = DefaultName
	}
	if doc.AudioDuration < 0 {
		return nil, fmt.Errorf("%w: negative audioDuration", ErrInvalid)
	}
	for _, c := range doc.Clips {
		if c.Duration < 0 || c.StartTime < 0 {
			return nil, fmt.Errorf("%w: clip %s has negative timing", ErrInvalid, c.ID)
		}
	}
	return &doc, nil
}

// FromStore captures the store as a document.
func FromStore(name string, st *timeline.Store, audioFile *Asset) *Document {
	snap := st.Snapshot()
	doc := &Document{
		Name:          name,
		Clips:         snap.Clips,
		Highlights:    snap.Annotations,
		AudioDuration: snap.AudioDuration,
		VideoTitle:    snap.VideoTitle,
		AudioFile:     audioFile,
	}
	for _, m := range snap.Media {
		doc.MediaItems = append(doc.MediaItems, Asset{ID: m.ID, Name: m.Name, Type: m.MimeType, Src: m.Src})
		if m.ID == snap.StartScreenID {
			doc.StartScreenImage = m.Src
		}
	}
	return doc
}

// Apply replaces the store contents with the document.
func (d *Document) Apply(st *timeline.Store) {
	st.Reset()
	st.SetAudioDuration(d.AudioDuration)
	st.SetVideoTitle(d.VideoTitle)

	for _, a := range d.MediaItems {
		st.AddMedia(timeline.MediaItem{ID: a.ID, Name: a.Name, MimeType: a.Type, Src: a.Src})
	}

	hasStart := false
	for _, c := range d.Clips {
		hasStart = hasStart || c.IsStartScreen
		st.InsertClip(c)
	}
	if !hasStart && d.StartScreenImage != "" {
		id := ""
		if m, ok := st.MediaBySrc(d.StartScreenImage); ok {
			id = m.ID
		} else {
			id = st.AddMedia(AssetFromSrc(d.StartScreenImage))
		}
		st.EnsureStartScreen(id)
	}

	for _, a := range d.Highlights {
		st.InsertAnnotation(a)
	}
}

// AssetFromSrc builds a media item for a bare src such as a start-screen
// path, guessing the type from its extension.
func AssetFromSrc(src string) timeline.MediaItem {
	name := path.Base(src)
	typ := ""
	if strings.HasPrefix(src, "data:") {
		name = "start screen"
		if semi := strings.IndexAny(src, ";,"); semi > 5 {
			typ = src[5:semi]
		}
	} else {
		typ = mime.TypeByExtension(path.Ext(src))
		if typ == "" && strings.EqualFold(path.Ext(src), ".webp") {
			typ = "image/webp"
		}
	}
	return timeline.MediaItem{Name: name, MimeType: typ, Src: src}
}

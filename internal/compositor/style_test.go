package compositor

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#016362", color.NRGBA{R: 0x01, G: 0x63, B: 0x62, A: 0xff}, false},
		{"fff", color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, false},
		{"#ffffff80", color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x80}, false},
		{"#12", color.NRGBA{}, true},
		{"#zzzzzz", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseStyle_Overrides(t *testing.T) {
	doc := []byte(`
accent: "#112233"
pulses:
  touch:
    border: "#00ff00"
    label: "TOUCH"
  ring:
    border: "#0000ff"
`)
	st, err := ParseStyle(doc)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}, st.Accent)
	assert.Equal(t, DefaultStyle().Background, st.Background)
	assert.Equal(t, "TOUCH", st.Pulse("touch").Label)
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, st.Pulse("touch").Border)
	assert.Equal(t, "TAP", st.Pulse("highlight").Label)
	assert.Equal(t, color.NRGBA{B: 0xff, A: 0xff}, st.Pulse("ring").Border)
	assert.Equal(t, "TAP", st.Pulse("unknown").Label)
}

func TestParseStyle_EmptyLabelClears(t *testing.T) {
	st, err := ParseStyle([]byte("pulses:\n  highlight:\n    label: \"\"\n"))
	require.NoError(t, err)
	assert.Empty(t, st.Pulse("highlight").Label)
}

func TestParseStyle_BadColor(t *testing.T) {
	_, err := ParseStyle([]byte(`accent: "nope"`))
	assert.Error(t, err)
}

func TestLoadStyleFile(t *testing.T) {
	st, err := LoadStyleFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStyle().Accent, st.Accent)

	path := filepath.Join(t.TempDir(), "style.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`background: "#000000"`), 0o644))
	st, err = LoadStyleFile(path)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 0xff}, st.Background)

	_, err = LoadStyleFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

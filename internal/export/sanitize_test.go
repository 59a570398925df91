package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indii/reelstudio/internal/encoder"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{" A\nB\rC\tD\x00 ", 100, "ABCD"},
		{"Az09 -_.,()", 100, "Az09 -_.,()"},
		{"bad<>|\"name", 100, "bad____name"},
		{"../../etc/passwd", 100, "_.._etc_passwd"},
		{"abcdefghijklmnopqrstuvwxyz", 10, "abcdefghij"},
		{"...", 10, ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeName(tc.in, tc.max), "SanitizeName(%q)", tc.in)
	}
}

func TestOutputPath(t *testing.T) {
	mp4 := encoder.Profile{Format: encoder.FormatMP4, Extension: ".mp4"}
	assert.Equal(t, filepath.Join("out", "My Reel.mp4"), OutputPath("out", "My Reel", mp4))
	assert.Equal(t, filepath.Join("out", "export.mp4"), OutputPath("out", "", mp4))
	assert.Equal(t, filepath.Join("out", "reel_frames"), OutputPath("out", "reel", encoder.Profile{Format: encoder.FormatFrames}))
}

func TestEnsureOutputDir(t *testing.T) {
	root := t.TempDir()

	created := filepath.Join(root, "new")
	require.NoError(t, EnsureOutputDir(created))
	info, err := os.Stat(created)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.Error(t, EnsureOutputDir(file))

	assert.Error(t, EnsureOutputDir(""))
	assert.Error(t, EnsureOutputDir("a/../b"))
	assert.Error(t, EnsureOutputDir(root+"/"))
}

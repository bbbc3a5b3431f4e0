package validation

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	magicMP4  = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}
	magicMOV  = []byte{0x00, 0x00, 0x00, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' '}
	magicWebM = []byte{0x1A, 0x45, 0xDF, 0xA3}
	magicID3  = []byte{'I', 'D', '3', 0x03, 0x00}
	magicMP3  = []byte{0xFF, 0xFB, 0x90, 0x00}
	magicFLAC = []byte{'f', 'L', 'a', 'C'}
	magicPNG  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	magicJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0}
)

func padBytes(magic []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, magic)
	return out
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"mp4", padBytes(magicMP4, 64), "video/mp4"},
		{"quicktime", padBytes(magicMOV, 64), "video/quicktime"},
		{"webm", padBytes(magicWebM, 64), "video/webm"},
		{"mp3 with id3", padBytes(magicID3, 64), "audio/mpeg"},
		{"mp3 frame sync", padBytes(magicMP3, 64), "audio/mpeg"},
		{"flac", padBytes(magicFLAC, 64), "audio/flac"},
		{"png", padBytes(magicPNG, 64), "image/png"},
		{"jpeg", padBytes(magicJPEG, 64), "image/jpeg"},
		{"empty", nil, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectContentType(bytes.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectContentType_RewindsReader(t *testing.T) {
	data := padBytes(magicWebM, 1024)
	r := bytes.NewReader(data)

	_, err := DetectContentType(r)
	require.NoError(t, err)

	all, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, all)
}

func TestClassifyFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	tests := []struct {
		name     string
		path     string
		wantType domain.MediaType
		wantErr  error
	}{
		{"video by content", write("clip.bin", padBytes(magicMP4, 64)), domain.MediaTypeVideo, nil},
		{"audio by content", write("song.dat", padBytes(magicID3, 64)), domain.MediaTypeAudio, nil},
		{"image by content", write("pic", padBytes(magicPNG, 64)), domain.MediaTypeImage, nil},
		{"video by extension", write("raw.mkv", []byte("not sniffable")), domain.MediaTypeVideo, nil},
		{"text rejected", write("notes.txt", []byte("hello world")), domain.MediaTypeOther, ErrDisallowedFileType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mediaType, err := ClassifyFile(tt.path)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantType, mediaType)
		})
	}

	_, _, err := ClassifyFile(filepath.Join(dir, "missing.mp4"))
	assert.Error(t, err)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sequences(settings []EncoderSetting) []int {
	out := make([]int, 0, len(settings))
	for _, s := range settings {
		out = append(out, s.Sequence)
	}
	return out
}

func TestResolveEncoderSettings(t *testing.T) {
	settings := []EncoderSetting{
		{Sequence: 4, SourceExt: "*video", DestinationExt: ".webm", Arguments: "b"},
		{Sequence: 0, SourceExt: ".mp3", DestinationExt: ".m4a", Arguments: "x"},
		{Sequence: 2, SourceExt: "*video", DestinationExt: ".mp4", Arguments: "a"},
		{Sequence: 1, SourceExt: "*audio", DestinationExt: ".m4a", Arguments: "y"},
		{Sequence: 3, SourceExt: ".MOV", DestinationExt: ".mp4", Arguments: "c"},
	}

	tests := []struct {
		name      string
		mediaType MediaType
		filename  string
		exclude   map[int]struct{}
		want      []int
	}{
		{
			name:      "video wildcard ordered by sequence",
			mediaType: MediaTypeVideo,
			filename:  "clip.mp4",
			want:      []int{2, 4},
		},
		{
			name:      "exact extension match is case insensitive",
			mediaType: MediaTypeVideo,
			filename:  "clip.mov",
			want:      []int{2, 3, 4},
		},
		{
			name:      "audio matches extension and wildcard",
			mediaType: MediaTypeAudio,
			filename:  "song.mp3",
			want:      []int{0, 1},
		},
		{
			name:      "excluded settings are skipped",
			mediaType: MediaTypeVideo,
			filename:  "clip.mov",
			exclude:   map[int]struct{}{2: {}, 3: {}},
			want:      []int{4},
		},
		{
			name:      "no match",
			mediaType: MediaTypeImage,
			filename:  "photo.jpg",
			want:      []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveEncoderSettings(tt.mediaType, tt.filename, settings, tt.exclude)
			assert.Equal(t, tt.want, sequences(got))
		})
	}
}

func TestResolveEncoderSettings_DoesNotMutateInput(t *testing.T) {
	settings := []EncoderSetting{
		{Sequence: 5, SourceExt: "*video"},
		{Sequence: 1, SourceExt: "*video"},
	}

	_ = ResolveEncoderSettings(MediaTypeVideo, "a.mp4", settings, nil)

	assert.Equal(t, []int{5, 1}, sequences(settings))
}

func TestHasUsableEncoderSetting(t *testing.T) {
	settings := []EncoderSetting{
		{Sequence: 0, SourceExt: "*audio", Arguments: "   "},
		{Sequence: 1, SourceExt: "*video", Arguments: "-i {SourceFilePath}"},
	}

	assert.False(t, HasUsableEncoderSetting(MediaTypeAudio, "a.mp3", settings))
	assert.True(t, HasUsableEncoderSetting(MediaTypeVideo, "a.mp4", settings))
	assert.False(t, HasUsableEncoderSetting(MediaTypeImage, "a.jpg", settings))
}

func TestGallerySettings_TimeoutFor(t *testing.T) {
	setting := EncoderSetting{Timeout: time.Minute}

	assert.Equal(t, 10*time.Minute, GallerySettings{ConversionTimeout: 10 * time.Minute}.TimeoutFor(setting))
	assert.Equal(t, time.Minute, GallerySettings{}.TimeoutFor(setting))
}

func TestDefaultEncoderSettings(t *testing.T) {
	settings := DefaultEncoderSettings()

	seen := map[int]bool{}
	for _, s := range settings {
		assert.False(t, seen[s.Sequence], "duplicate sequence %d", s.Sequence)
		seen[s.Sequence] = true
		assert.Contains(t, s.Arguments, TokenSourceFilePath)
		assert.Contains(t, s.Arguments, TokenDestinationFilePath)
	}

	assert.Equal(t, []int{2, 3}, sequences(ResolveEncoderSettings(MediaTypeVideo, "a.mkv", settings, nil)))
}

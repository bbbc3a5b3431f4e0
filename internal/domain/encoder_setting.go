package domain

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EncoderSetting describes how the external tool turns one source type into a
// destination type. SourceExt is either an extension (".mp3") or a wildcard
// keyed by major type ("*video", "*audio", "*image").
type EncoderSetting struct {
	Sequence       int           `json:"sequence" mapstructure:"sequence"`
	SourceExt      string        `json:"source_ext" mapstructure:"sourceExt"`
	DestinationExt string        `json:"destination_ext" mapstructure:"destinationExt"`
	Arguments      string        `json:"arguments" mapstructure:"arguments"`
	Timeout        time.Duration `json:"timeout" mapstructure:"timeout"`
}

func (e EncoderSetting) String() string {
	return "#" + strconv.Itoa(e.Sequence) + " " + e.SourceExt + " → " + e.DestinationExt
}

// GallerySettings is the gallery-level configuration the queue consults.
type GallerySettings struct {
	EncoderSettings   []EncoderSetting
	ConversionTimeout time.Duration
}

// TimeoutFor returns the tool timeout for an attempt with the given setting.
// The gallery timeout wins; the setting's own timeout is the fallback.
func (g GallerySettings) TimeoutFor(setting EncoderSetting) time.Duration {
	if g.ConversionTimeout > 0 {
		return g.ConversionTimeout
	}
	return setting.Timeout
}

// ResolveEncoderSettings returns the settings applicable to a file of the given
// media type and name, ordered by ascending sequence. Settings listed in
// exclude (by sequence) are skipped.
func ResolveEncoderSettings(mediaType MediaType, filename string, settings []EncoderSetting, exclude map[int]struct{}) []EncoderSetting {
	ext := strings.ToLower(filepath.Ext(filename))
	wildcard := "*" + string(mediaType)

	var matched []EncoderSetting
	for _, s := range settings {
		if _, skip := exclude[s.Sequence]; skip {
			continue
		}
		src := strings.ToLower(strings.TrimSpace(s.SourceExt))
		if (ext != "" && src == ext) || src == wildcard {
			matched = append(matched, s)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Sequence < matched[j].Sequence
	})
	return matched
}

// HasUsableEncoderSetting reports whether at least one matching setting carries
// a non-empty argument template.
func HasUsableEncoderSetting(mediaType MediaType, filename string, settings []EncoderSetting) bool {
	for _, s := range ResolveEncoderSettings(mediaType, filename, settings, nil) {
		if strings.TrimSpace(s.Arguments) != "" {
			return true
		}
	}
	return false
}

// DefaultEncoderSettings mirrors a stock gallery install.
func DefaultEncoderSettings() []EncoderSetting {
	return []EncoderSetting{
		{
			Sequence:       0,
			SourceExt:      ".mp3",
			DestinationExt: ".m4a",
			Arguments:      `-y -i "{SourceFilePath}" -c:a aac -b:a 128k "{DestinationFilePath}"`,
		},
		{
			Sequence:       1,
			SourceExt:      "*audio",
			DestinationExt: ".m4a",
			Arguments:      `-y -i "{SourceFilePath}" -c:a aac -b:a 128k "{DestinationFilePath}"`,
		},
		{
			Sequence:       2,
			SourceExt:      "*video",
			DestinationExt: ".mp4",
			Arguments: `-y -i "{SourceFilePath}" -vf "{AutoRotateFilter}scale=w={Width}:h={Height}:force_original_aspect_ratio=decrease:force_divisible_by=2" ` +
				`-c:v libx264 -crf 23 -preset medium -c:a aac -b:a 128k -movflags +faststart -metadata:s:v:0 rotate=0 "{DestinationFilePath}"`,
		},
		{
			Sequence:       3,
			SourceExt:      "*video",
			DestinationExt: ".webm",
			Arguments: `-y -i "{SourceFilePath}" -vf "{AutoRotateFilter}scale=w={Width}:h={Height}:force_original_aspect_ratio=decrease:force_divisible_by=2" ` +
				`-c:v libvpx-vp9 -crf 33 -b:v 0 -row-mt 1 -c:a libopus -b:a 128k -metadata:s:v:0 rotate=0 "{DestinationFilePath}"`,
		},
	}
}

package domain

import (
	"regexp"
	"strconv"
	"strings"
)

type ProbeStream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	RawJSON string        `json:"-"`
}

func (p *ProbeResult) VideoStream() *ProbeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

func (p *ProbeResult) Dimensions() (width, height int) {
	vs := p.VideoStream()
	if vs != nil {
		return vs.Width, vs.Height
	}
	return 0, 0
}

var videoSizePattern = regexp.MustCompile(`Stream #\d+:\d+.*?: Video: .*?, (\d{2,5})x(\d{2,5})`)

// ParseOutputDimensions extracts the video size of the first output stream
// from ffmpeg's console output. Input streams are used only when the output
// section is missing.
func ParseOutputDimensions(output string) (width, height int, ok bool) {
	section := output
	if idx := strings.Index(output, "Output #0"); idx >= 0 {
		section = output[idx:]
	}
	m := videoSizePattern.FindStringSubmatch(section)
	if m == nil {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil || w == 0 || h == 0 {
		return 0, 0, false
	}
	return w, h, true
}

package domain

type RotateFlip string

const (
	RotateNone     RotateFlip = ""
	Rotate90       RotateFlip = "rotate90"
	Rotate180      RotateFlip = "rotate180"
	Rotate270      RotateFlip = "rotate270"
	FlipHorizontal RotateFlip = "flipx"
	FlipVertical   RotateFlip = "flipy"
)

var rotateFilters = map[RotateFlip]string{
	Rotate90:       "transpose=1",
	Rotate180:      "transpose=1,transpose=1",
	Rotate270:      "transpose=2",
	FlipHorizontal: "hflip",
	FlipVertical:   "vflip",
}

// Filter returns the ffmpeg video filter for the rotation, or "" for none.
func (r RotateFlip) Filter() string {
	return rotateFilters[r]
}

// SwapsDimensions reports whether width and height trade places.
func (r RotateFlip) SwapsDimensions() bool {
	return r == Rotate90 || r == Rotate270
}

func (r RotateFlip) Valid() bool {
	if r == RotateNone {
		return true
	}
	_, ok := rotateFilters[r]
	return ok
}

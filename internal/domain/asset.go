package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeImage MediaType = "image"
	MediaTypeOther MediaType = "other"
)

// Default target dimensions used when neither the asset metadata nor the
// source file supply any.
const (
	DefaultVideoWidth  = 640
	DefaultVideoHeight = 480
	DefaultAudioWidth  = 600
	DefaultAudioHeight = 60
	DefaultOtherWidth  = 640
	DefaultOtherHeight = 480
)

// Rendition is one physical file belonging to an asset.
type Rendition struct {
	Path     string `json:"path"`
	FileSize int64  `json:"file_size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func (r *Rendition) Filename() string {
	if r == nil || r.Path == "" {
		return ""
	}
	return filepath.Base(r.Path)
}

func (r *Rendition) Ext() string {
	return strings.ToLower(filepath.Ext(r.Filename()))
}

type Asset struct {
	ID         int64      `json:"id"`
	GalleryID  int64      `json:"gallery_id"`
	AlbumID    int64      `json:"album_id"`
	Type       MediaType  `json:"type"`
	Title      string     `json:"title"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	RotateFlip RotateFlip `json:"rotate_flip"`
	Tags       []string   `json:"tags"`
	Original   Rendition  `json:"original"`
	Optimized  *Rendition `json:"optimized,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func NewAsset(galleryID, albumID int64, originalPath string) *Asset {
	return &Asset{
		GalleryID: galleryID,
		AlbumID:   albumID,
		Type:      DetectMediaType(originalPath),
		Title:     strings.TrimSuffix(filepath.Base(originalPath), filepath.Ext(originalPath)),
		Original:  Rendition{Path: originalPath},
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	c.Tags = append([]string(nil), a.Tags...)
	if a.Optimized != nil {
		opt := *a.Optimized
		c.Optimized = &opt
	}
	return &c
}

// NeededRotateFlip returns the orientation correction still pending on the
// asset's original file.
func (a *Asset) NeededRotateFlip() RotateFlip {
	if !a.RotateFlip.Valid() {
		return RotateNone
	}
	return a.RotateFlip
}

// Dir is the directory holding the asset's files.
func (a *Asset) Dir() string {
	return filepath.Dir(a.Original.Path)
}

// BaseName is the original filename without its extension.
func (a *Asset) BaseName() string {
	name := a.Original.Filename()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// DefaultDimensions returns the type-specific fallback target size.
func (a *Asset) DefaultDimensions() (width, height int) {
	switch a.Type {
	case MediaTypeVideo:
		return DefaultVideoWidth, DefaultVideoHeight
	case MediaTypeAudio:
		return DefaultAudioWidth, DefaultAudioHeight
	default:
		return DefaultOtherWidth, DefaultOtherHeight
	}
}

// CacheKeys lists the external cache entries affected by a change to the asset.
type CacheKeys struct {
	AssetID   int64
	AlbumID   int64
	GalleryID int64
}

func (a *Asset) CacheKeys() CacheKeys {
	return CacheKeys{AssetID: a.ID, AlbumID: a.AlbumID, GalleryID: a.GalleryID}
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".bmp": true, ".ico": true,
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".ogg": true, ".flac": true,
	".aac": true, ".m4a": true, ".wma": true, ".opus": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true,
	".mkv": true, ".avi": true, ".wmv": true, ".flv": true,
	".mpg": true, ".mpeg": true, ".3gp": true, ".ts": true,
}

func DetectMediaType(filename string) MediaType {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case imageExts[ext]:
		return MediaTypeImage
	case audioExts[ext]:
		return MediaTypeAudio
	case videoExts[ext]:
		return MediaTypeVideo
	}
	return MediaTypeOther
}

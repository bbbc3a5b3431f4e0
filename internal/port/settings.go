package port

import "github.com/bnema/convqueue/internal/domain"

type GallerySettingsProvider interface {
	GallerySettings(galleryID int64) domain.GallerySettings
}

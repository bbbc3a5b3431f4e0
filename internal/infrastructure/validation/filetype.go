// Package validation holds file-name and file-content checks applied before
// files are registered as assets or written by the encoder.
package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bnema/convqueue/internal/domain"
)

// ErrDisallowedFileType is returned when a file is not recognisable media.
var ErrDisallowedFileType = errors.New("file type not allowed")

// magicBytesBufferSize is the number of bytes read for content detection.
const magicBytesBufferSize = 512

// DetectContentType sniffs the MIME type from the first bytes of r and
// rewinds it.
func DetectContentType(r io.ReadSeeker) (string, error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return "application/octet-stream", nil
	}
	buf = buf[:n]

	if mime := detectMediaMagic(buf); mime != "" {
		return mime, nil
	}
	return http.DetectContentType(buf), nil
}

// ClassifyFile determines the media type of a file on disk. Content sniffing
// wins; the extension decides when the content is inconclusive. Files that
// are neither are rejected with ErrDisallowedFileType.
func ClassifyFile(path string) (mime string, mediaType domain.MediaType, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	mime, err = DetectContentType(f)
	if err != nil {
		return "", "", fmt.Errorf("detect content type: %w", err)
	}

	switch {
	case strings.HasPrefix(mime, "video/"):
		mediaType = domain.MediaTypeVideo
	case strings.HasPrefix(mime, "audio/"), mime == "application/ogg":
		mediaType = domain.MediaTypeAudio
	case strings.HasPrefix(mime, "image/"):
		mediaType = domain.MediaTypeImage
	default:
		mediaType = domain.DetectMediaType(path)
	}

	if mediaType == domain.MediaTypeOther {
		return mime, mediaType, ErrDisallowedFileType
	}
	return mime, mediaType, nil
}

// detectMediaMagic covers containers http.DetectContentType gets wrong or
// does not know.
func detectMediaMagic(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	switch {
	case buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3:
		return "video/webm"
	case string(buf[:4]) == "fLaC":
		return "audio/flac"
	case string(buf[:3]) == "ID3":
		return "audio/mpeg"
	case buf[0] == 0xFF && (buf[1]&0xFE == 0xFA || buf[1]&0xFE == 0xF2):
		return "audio/mpeg"
	}

	if len(buf) >= 12 {
		if string(buf[:4]) == "RIFF" && string(buf[8:12]) == "WEBP" {
			return "image/webp"
		}
		if string(buf[4:8]) == "ftyp" {
			switch string(buf[8:12]) {
			case "qt  ":
				return "video/quicktime"
			case "M4A ":
				return "audio/mp4"
			default:
				return "video/mp4"
			}
		}
	}
	return ""
}

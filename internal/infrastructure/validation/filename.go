package validation

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength is the common filesystem limit in bytes.
const maxFilenameLength = 255

var unsafeFilenameChars = map[rune]bool{
	'"':  true,
	'\\': true,
	'/':  true,
	':':  true,
	'*':  true,
	'?':  true,
	'<':  true,
	'>':  true,
	'|':  true,
}

// SanitizeFilename makes a name safe to hand to the encoding tool and the
// filesystem: path separators, shell-hostile characters and control
// characters become underscores, Unicode is kept, and the result is truncated
// to 255 bytes with the extension preserved. Empty input yields "file".
func SanitizeFilename(name string) string {
	result := strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || unsafeFilenameChars[r] {
			return '_'
		}
		return r
	}, name))

	if strings.Trim(result, "_.") == "" {
		return "file"
	}
	if len(result) > maxFilenameLength {
		result = truncatePreservingExtension(result)
	}
	return result
}

// RenditionFilename builds the file name of a derived rendition, e.g.
// ("holiday clip", "_opt", ".mp4") -> "holiday clip_opt.mp4".
func RenditionFilename(base, suffix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return SanitizeFilename(base + suffix + strings.ToLower(ext))
}

func truncatePreservingExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || len(ext) >= maxFilenameLength {
		return truncateToBytes(name, maxFilenameLength)
	}
	base := strings.TrimSuffix(name, ext)
	return truncateToBytes(base, maxFilenameLength-len(ext)) + ext
}

// truncateToBytes cuts s to at most maxBytes without splitting a rune.
func truncateToBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

package service

import (
	"path"
	"strings"
	"unicode"

	"github.com/beanbocchi/parcel/internal/model"
)

const maxFilenameBytes = 200

// sanitizeFilename reduces a client supplied name to a single safe path
// segment. Directory components are dropped and control characters removed.
func sanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." || name == "/" {
		return "", model.ErrValidation.Fmt("filename is empty or not a valid file name")
	}

	if len(name) > maxFilenameBytes {
		name = truncateFilename(name, maxFilenameBytes)
	}
	return name, nil
}

// truncateFilename shortens name to at most limit bytes, keeping the extension
// and never splitting a UTF-8 sequence.
func truncateFilename(name string, limit int) string {
	ext := path.Ext(name)
	if len(ext) > limit/2 {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)

	budget := limit - len(ext)
	cut := 0
	for i := range stem {
		if i > budget {
			break
		}
		cut = i
	}
	if len(stem) <= budget {
		cut = len(stem)
	}
	return stem[:cut] + ext
}

// validStoredFilename reports whether name can be an artifact key. Anything
// that could address a path outside the artifact root is rejected.
func validStoredFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

package submission

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultDocumentName replaces file names that sanitize to nothing.
const DefaultDocumentName = "document"

// MaxFilenameLen matches the original_name column width.
const MaxFilenameLen = 255

// maxExtLen bounds the suffix kept when a long name is shortened.
const maxExtLen = 16

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces an untrusted file name to a single path element
// drawn from [A-Za-z0-9_.-]: "../../bin/gpg" becomes "bin_gpg".
func SanitizeFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	name = strings.NewReplacer("/", " ", `\`, " ").Replace(b.String())
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name == "" {
		return DefaultDocumentName
	}
	return truncateFilename(name)
}

// truncateFilename shortens name to MaxFilenameLen bytes, keeping a short
// extension intact. name is ASCII here.
func truncateFilename(name string) string {
	if len(name) <= MaxFilenameLen {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > maxExtLen {
		ext = ""
	}
	stem := strings.TrimRight(name[:MaxFilenameLen-len(ext)], "._")
	if stem == "" {
		stem = DefaultDocumentName
	}
	return stem + ext
}

package shared

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxFileNameBytes = 255

var (
	illegalFileChars  = regexp.MustCompile(`[/?<>\\:*|"]`)
	controlFileChars  = regexp.MustCompile(`[\x00-\x1f\x80-\x9f]`)
	reservedFileName  = regexp.MustCompile(`^\.+$`)
	windowsReserved   = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
	windowsTrailing   = regexp.MustCompile(`[. ]+$`)
	fileNameSanitizer = []*regexp.Regexp{illegalFileChars, controlFileChars, reservedFileName, windowsReserved, windowsTrailing}
)

// SanitizeFileName strips characters that are unsafe in file names on common platforms.
//
// Path separators, reserved punctuation and control characters are removed, as are
// "."/".." and Windows device names. Trailing dots and spaces are trimmed and the
// result is truncated to 255 bytes without splitting a UTF-8 sequence.
// The result may be empty.
func SanitizeFileName(name string) string {
	for _, re := range fileNameSanitizer {
		name = re.ReplaceAllString(name, "")
	}
	return truncateUTF8(name, maxFileNameBytes)
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimRight(s, " .")
}

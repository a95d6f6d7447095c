package transfer

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// illegalChars are characters not allowed in filenames on common filesystems.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00]`)

// multiSpace matches multiple consecutive spaces.
var multiSpace = regexp.MustCompile(`\s+`)

// multiDot matches multiple consecutive dots.
var multiDot = regexp.MustCompile(`\.{2,}`)

// Filename builds the deterministic output file name for a record:
// publisher followed by title, NFC-normalized and sanitized, with a .pdf
// extension. Two records with the same publisher and title map to the same
// name; the later transfer overwrites the earlier (known limitation).
func Filename(publisher, title string) string {
	name := norm.NFC.String(publisher + title)
	name = sanitize(name)
	if name == "" {
		name = "untitled"
	}
	return name + ".pdf"
}

// sanitize removes or replaces characters that are unsafe for filenames.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, "/", " ")
	name = strings.ReplaceAll(name, "\\", " ")
	name = illegalChars.ReplaceAllString(name, " ")
	name = multiDot.ReplaceAllString(name, ".")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.Trim(name, " .")
}

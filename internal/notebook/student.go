package notebook

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Trailing filename markers that are not part of the student's name.
// Checked in order against the current tail of the name.
var studentNameSuffixes = []string{
	"_homework", "_hw", "_assignment", "_lab", "_project",
	"_final", "_submission", "_v1", "_v2", "_v3",
}

// StudentName derives a display name from a submission filename, following
// common conventions such as "lastname_firstname_assignment.ipynb". When
// nothing usable remains the original filename is returned.
func StudentName(fileName string) string {
	base := filepath.Base(fileName)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	for _, suffix := range studentNameSuffixes {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
		}
	}

	display := strings.ReplaceAll(name, "_", " ")
	display = strings.ReplaceAll(display, "-", " ")
	display = strings.TrimSpace(display)
	if display == "" {
		return fileName
	}

	return titleCase(display)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

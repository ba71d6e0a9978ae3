package config

import (
	"os"
	"strings"
)

// CleanFileName removes characters which are not allowed in file names, it is
// used to derive report entry names from processed documents. Leading dots
// are dropped so entries never become hidden files.
func CleanFileName(in string) string {
	forbidden := forbiddenNameChars + string(os.PathSeparator) + string(os.PathListSeparator)
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		if sym == 0 || strings.ContainsRune(forbidden, sym) {
			return -1
		}
		return sym
	}, in), ".")
	if len(out) == 0 {
		out = "_bad_file_name_"
	}
	return out
}

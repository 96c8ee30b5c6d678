package utils

import "strings"

// FoldKey normalizes user-entered labels for lookup: surrounding whitespace
// is trimmed, inner runs of whitespace collapse to one space, and the result
// is case-folded. Used to match option text in bulk-import sheets.
func FoldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

package utils

import (
	"strconv"
	"strings"
)

// FormatWithCommas formats an integer with comma separators
func FormatWithCommas(n int) string {
	if n < 0 {
		return "-" + FormatWithCommas(-n)
	}
	str := strconv.Itoa(n)
	if len(str) <= 3 {
		return str
	}
	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// FormatIDs renders an id list for terminal output, eliding after max entries
func FormatIDs(ids []int64, max int) string {
	parts := make([]string, 0, len(ids))
	for i, id := range ids {
		if max > 0 && i == max {
			parts = append(parts, "+"+strconv.Itoa(len(ids)-max)+" more")
			break
		}
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ", ")
}

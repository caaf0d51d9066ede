package core

import (
	"strconv"
	"strings"
)

// InferLiteral parses a textual value into a metadata value. A value wrapped in
// single quotes is always a string. Otherwise bool is tried first, then float
// (only when the text contains a dot), then int, falling back to string.
func InferLiteral(s string) any {
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return s[1 : len(s)-1]
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}

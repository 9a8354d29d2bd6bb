package util

import (
	"errors"
	"strings"
	"unicode"
)

const maxFileNameLen = 128

// SanitizeFileName removes path separators and control characters and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", errors.New("invalid file name")
	}
	if runes := []rune(s); len(runes) > maxFileNameLen {
		s = string(runes[len(runes)-maxFileNameLen:])
	}
	return s, nil
}

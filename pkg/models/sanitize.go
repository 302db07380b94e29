package models

import (
	"strings"
	"unicode/utf8"
)

const maxFileNameLen = 100

// SafeFileName turns an arbitrary string (entity names, attachment names)
// into something every filesystem accepts. Reserved characters become
// underscores, surrounding dots and spaces are trimmed and the result is
// capped at 100 characters.
func SafeFileName(name string) string {
	out := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)

	out = strings.Trim(out, ". ")
	if out == "" {
		return "unnamed"
	}
	if len(out) > maxFileNameLen {
		cut := maxFileNameLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

package features

import (
	"fmt"
	"unicode/utf8"
)

// Hidden-character classes reported by ScanUnicode.
const (
	HiddenZeroWidth = "zero-width"
	HiddenBidi      = "bidi-override"
	HiddenTag       = "tag-char"
	HiddenControl   = "control-char"
)

// HiddenRune is one invisible or display-altering character found in text.
type HiddenRune struct {
	Class     string `json:"class"`
	Offset    int    `json:"offset"`
	Codepoint string `json:"codepoint"`
}

// ScanUnicode returns every character in s that can hide or reorder content
// when a finding is displayed: zero-width marks, bidi controls, Unicode tag
// characters and C0/C1 controls other than tab, LF and CR. Homoglyphs are
// not reported; non-Latin text is normal in application logs.
func ScanUnicode(s string) []HiddenRune {
	var found []HiddenRune
	for i, r := range s {
		if r == utf8.RuneError {
			continue
		}
		if class := hiddenClass(r); class != "" {
			found = append(found, HiddenRune{Class: class, Offset: i, Codepoint: fmt.Sprintf("U+%04X", r)})
		}
	}
	return found
}

func hiddenClass(r rune) string {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return ""
	case r <= 0x1F, r == 0x7F, r >= 0x80 && r <= 0x9F:
		return HiddenControl
	case r >= 0xE0001 && r <= 0xE007F:
		return HiddenTag
	}
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u200E', '\u200F', '\u2060', '\u180E', '\uFEFF':
		return HiddenZeroWidth
	case '\u202A', '\u202B', '\u202C', '\u202D', '\u202E', '\u2066', '\u2067', '\u2068', '\u2069':
		return HiddenBidi
	}
	return ""
}

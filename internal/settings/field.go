package settings

import (
	"strings"
	"unicode/utf8"
)

// Field is a string value bounded to a fixed maximum length in bytes.
//
// The zero Field is empty and unbounded; fields inside a Record always carry
// the limit from the record layout.
type Field struct {
	value string
	limit int
}

// NewField bounds value to limit bytes. Invalid UTF-8 sequences are first
// replaced with U+FFFD, the form the stored document keeps them in. When
// value is then too long it is cut at the last complete rune that fits and
// truncated is true.
func NewField(value string, limit int) (f Field, truncated bool) {
	if !utf8.ValidString(value) {
		value = strings.ToValidUTF8(value, string(utf8.RuneError))
	}
	if limit > 0 && len(value) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(value[cut]) {
			cut--
		}
		value = value[:cut]
		truncated = true
	}
	return Field{value: value, limit: limit}, truncated
}

// String returns the stored value.
func (f Field) String() string {
	return f.value
}

// Limit returns the maximum length in bytes (0 means unbounded).
func (f Field) Limit() int {
	return f.limit
}

// Empty reports whether the field holds no value. An empty topic disables
// the feature it belongs to.
func (f Field) Empty() bool {
	return f.value == ""
}

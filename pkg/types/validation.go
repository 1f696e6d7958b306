package types

import (
	"strings"
	"unicode/utf8"
)

// MaxRoomNameLength bounds normalized room names.
const MaxRoomNameLength = 20

// NormalizeRoomName canonicalizes a client-supplied room name: trims
// surrounding whitespace, strips a leading '#', and lowercases. All
// registry lookups and inserts key on the normalized form, so "#Tech"
// and "tech" refer to the same room.
func NormalizeRoomName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "#")
	return strings.ToLower(name)
}

// ValidateRoomName checks an already-normalized room name. The length
// limit counts characters, not bytes, so multibyte names get the same
// 20 characters as ASCII ones.
func ValidateRoomName(name string) error {
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxRoomNameLength {
		return ErrInvalidRoomName
	}
	return nil
}

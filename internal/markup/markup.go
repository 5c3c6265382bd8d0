// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package markup prepares text for Telegram's MarkdownV2 parse mode.
package markup

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the Telegram limit for one message, in bytes of UTF-8.
const MaxMessageLength = 4096

// specialChars are the characters MarkdownV2 requires to be escaped outside
// of entities. The backslash is included: Telegram reads a bare backslash as
// the start of an escape and drops it.
const specialChars = "_*[]()~`>#+-=|{}.!\\"

func isSpecial(r rune) bool {
	return r < utf8.RuneSelf && strings.IndexByte(specialChars, byte(r)) >= 0
}

// EscapeMarkdownV2 prefixes every MarkdownV2 special character in s with a
// backslash. All other runes are copied unchanged.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for _, r := range s {
		if isSpecial(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeMarkdownV2 reverses EscapeMarkdownV2: a backslash followed by a
// special character yields that character. Any other backslash is kept.
func UnescapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isSpecial(rune(s[i+1])) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Sanitize ensures text is valid UTF-8 for the Telegram API.
func Sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// Truncate cuts s to at most limit bytes on a rune boundary, appending "..."
// when truncation occurs.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	const suffix = "..."
	cut := limit - len(suffix)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}

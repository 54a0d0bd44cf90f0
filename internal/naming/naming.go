// Package naming turns Go handler identifiers into the tokens users type
// after a slash or carry inside a button payload.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// Separator joins words of a normalized handler name.
	Separator = "_"

	asyncWord    = "async"
	callbackWord = "callback"
)

// Normalize converts a mixed-case identifier such as "PickItemAsync" into
// "pick_item". It is idempotent.
func Normalize(identifier string) string {
	return NormalizeWith(identifier, Separator)
}

// NormalizeWith is Normalize with a custom word separator. Parameter names
// are rendered with a space.
func NormalizeWith(identifier, sep string) string {
	name := trimAsync(identifier)

	var b strings.Builder
	b.Grow(len(name) + 4)

	wordEnd := false
	for _, r := range name {
		if unicode.IsUpper(r) {
			if wordEnd {
				b.WriteString(sep)
			}
			b.WriteRune(unicode.ToLower(r))
			wordEnd = false
			continue
		}
		b.WriteRune(r)
		wordEnd = endsWord(r)
	}
	return b.String()
}

// Classify normalizes identifier and reports whether it names a callback
// handler. The trailing "callback" word is removed from callback names.
// An empty name means the identifier consisted of the suffix alone.
func Classify(identifier string) (name string, callback bool) {
	name = Normalize(identifier)
	if name == callbackWord {
		return "", true
	}
	if trimmed, ok := strings.CutSuffix(name, Separator+callbackWord); ok {
		return trimmed, true
	}
	return name, false
}

// endsWord reports whether an uppercase letter following r starts a new word.
func endsWord(r rune) bool {
	return unicode.IsLower(r) || unicode.IsDigit(r)
}

// trimAsync strips trailing "async" words. A word starts either after a
// separator or at an uppercase letter that follows a lowercase letter or a
// digit, so "FetchAsync", "Roll2Async" and "fetch_async" lose the suffix but
// "Bypassasync" keeps it.
func trimAsync(identifier string) string {
	for {
		n := len(identifier) - len(asyncWord)
		if n <= 0 || !strings.EqualFold(identifier[n:], asyncWord) {
			return identifier
		}
		prev, _ := utf8.DecodeLastRuneInString(identifier[:n])
		switch {
		case prev == '_':
			identifier = identifier[:n-1]
		case endsWord(prev) && unicode.IsUpper(rune(identifier[n])):
			identifier = identifier[:n]
		default:
			return identifier
		}
	}
}

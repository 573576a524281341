package endpoint

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultKeyPrefix is the prefix generated code puts in front of payload
// keys that are not valid identifiers on their own (for example keys that
// start with a digit). It is stripped again before a payload is sent.
const DefaultKeyPrefix = "prefixNumber"

// normalize runs the payload pipeline: nil entries are dropped, the key
// prefix is stripped, then keys are snake_cased when snake is set.
// Only top-level keys are touched.
func normalize(in *Values, prefix string, snake bool) *Values {
	out := NewValues()
	in.Range(func(key string, val any) bool {
		if val == nil {
			return true
		}
		key = stripPrefix(key, prefix)
		if snake {
			key = SnakeCase(key)
		}
		out.Set(key, val)
		return true
	})
	return out
}

// stripPrefix removes prefix from key and lower-cases the first rune of the
// remainder. Keys equal to the prefix are left alone.
func stripPrefix(key, prefix string) string {
	if prefix == "" || len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
		return key
	}
	rest := key[len(prefix):]
	r, size := utf8.DecodeRuneInString(rest)
	if r == utf8.RuneError && size <= 1 {
		return rest
	}
	return string(unicode.ToLower(r)) + rest[size:]
}

// snakeKeys converts every top-level key to snake_case.
func snakeKeys(in *Values) *Values {
	out := NewValues()
	in.Range(func(key string, val any) bool {
		out.Set(SnakeCase(key), val)
		return true
	})
	return out
}

// SnakeCase converts camelCase, PascalCase, kebab-case and space separated
// words to snake_case. Acronyms stay together: "HTTPServer" becomes
// "http_server" and "userID" becomes "user_id". Runs of separators collapse
// to one underscore; '-', ' ' and '.' at either end are dropped. Bytes that
// are not valid UTF-8 are copied as they are.
func SnakeCase(s string) string {
	runes, raw := decodeRunes(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	lastUnderscore := false
	pending := false
	for i, r := range runes {
		switch {
		case raw[i] == "" && (r == '-' || r == ' ' || r == '.'):
			pending = b.Len() > 0
			continue
		case r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			pending = false
			continue
		}

		if pending && !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
		pending = false

		switch {
		case raw[i] != "":
			b.WriteString(raw[i])
		case unicode.IsUpper(r):
			if i > 0 && b.Len() > 0 && !lastUnderscore && wordStart(runes, i) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		lastUnderscore = false
	}
	return b.String()
}

// decodeRunes splits s into runes. raw[i] holds the original byte when
// runes[i] comes from invalid UTF-8 and is empty otherwise.
func decodeRunes(s string) ([]rune, []string) {
	runes := make([]rune, 0, len(s))
	raw := make([]string, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			raw = append(raw, s[i:i+1])
		} else {
			raw = append(raw, "")
		}
		runes = append(runes, r)
		i += size
	}
	return runes, raw
}

// wordStart reports whether the upper-case rune at i begins a new word.
func wordStart(runes []rune, i int) bool {
	prev := runes[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	// end of an acronym: "HTTPServer" splits before the 'S'
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}

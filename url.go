package worker

import (
	"iter"
	"net/url"
	"strings"
)

// Param returns the first value of key in u's query.
func Param(u *url.URL, key string) (string, bool) {
	for v := range ParamIter(u, key) {
		return v, true
	}
	return "", false
}

// ParamIter yields every value of key in u's query, in order. Pairs are
// decoded lazily and each range starts over from the beginning; u is not
// modified.
func ParamIter(u *url.URL, key string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := u.RawQuery
		for rest != "" {
			var pair string
			pair, rest, _ = strings.Cut(rest, "&")
			if pair == "" {
				continue
			}
			k, v, _ := strings.Cut(pair, "=")
			if formDecode(k) != key {
				continue
			}
			if !yield(formDecode(v)) {
				return
			}
		}
	}
}

// formDecode decodes one application/x-www-form-urlencoded component.
// '+' becomes a space and valid %XX escapes are decoded; malformed escapes
// are kept as literal text. Invalid UTF-8 in the result is replaced.
func formDecode(s string) string {
	if !strings.ContainsAny(s, "+%") {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b = append(b, ' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b = append(b, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
		default:
			b = append(b, c)
		}
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

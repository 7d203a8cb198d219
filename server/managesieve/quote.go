package managesieve

import "strings"

// quoteString renders s as a literal ("{N}\r\n" + bytes) when it
// contains a CR or LF, which a quoted-string cannot carry (RFC 5804
// §2.1), and as a quoted-string with `"` and `\` escaped otherwise,
// whatever its length. Invalid UTF-8 sequences are dropped first.
func quoteString(s string) string {
	s = strings.ToValidUTF8(s, "")
	if needsLiteral(s) {
		return literalHeader(len(s)) + s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	return b.String()
}

func needsLiteral(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

// literalHeader formats a synchronizing literal prefix for a string of
// the given byte length.
func literalHeader(n int) string {
	return "{" + itoa(n) + "}\r\n"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

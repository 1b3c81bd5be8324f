package client

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// HashPassword derives the credential digest the reporting service expects:
// SHA-1 over the UTF-8 bytes of the password, rendered as lower-case hex.
// The digest is computed once and the clear-text password is never stored.
func HashPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// escapeValue percent-encodes a form value the way the reporting service
// decodes it: space becomes '+', unreserved characters (letters, digits,
// '-', '_', '.', '~') pass through, and every other byte becomes an
// upper-case %XX escape.
func escapeValue(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0F])
		}
	}
	return b.String()
}

const upperHex = "0123456789ABCDEF"

type formField struct {
	key   string
	value string
}

func encodeForm(fields []formField) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field.key+"="+escapeValue(field.value))
	}
	return strings.Join(parts, "&")
}

// Package otp implements the shared-secret codec and time-based one-time
// password primitives used by the MFA service.
package otp

import (
	"errors"
	"strings"
)

// RFC 4648 alphabet, the encoding authenticator apps expect.
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var ErrInvalidEncoding = errors.New("invalid base32 encoding")

// EncodeBase32 encodes raw bytes without padding. A trailing group of fewer
// than five bits is emitted left-aligned in a final symbol.
func EncodeBase32(src []byte) string {
	var b strings.Builder
	b.Grow((len(src)*8 + 4) / 5)
	var buf uint32
	bits := 0
	for _, by := range src {
		buf = buf<<8 | uint32(by)
		bits += 8
		for bits >= 5 {
			b.WriteByte(base32Alphabet[(buf>>(bits-5))&0x1f])
			bits -= 5
		}
	}
	if bits > 0 {
		b.WriteByte(base32Alphabet[(buf<<(5-bits))&0x1f])
	}
	return b.String()
}

// DecodeBase32 decodes a Base32 string, case-insensitively. Trailing bits
// that cannot form a full byte are discarded. Characters outside the
// alphabet yield ErrInvalidEncoding.
func DecodeBase32(s string) ([]byte, error) {
	s = strings.ToUpper(s)
	out := make([]byte, 0, len(s)*5/8)
	var buf uint32
	bits := 0
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(base32Alphabet, s[i])
		if idx < 0 {
			return nil, ErrInvalidEncoding
		}
		buf = buf<<5 | uint32(idx)
		bits += 5
		if bits >= 8 {
			out = append(out, byte(buf>>(bits-8)))
			bits -= 8
		}
	}
	return out, nil
}

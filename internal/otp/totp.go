package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"
)

const (
	// SecretLength is 160 bits of entropy, the RFC 4226 recommended minimum.
	SecretLength = 20

	DefaultTimeStep = 30 * time.Second
	DefaultDigits   = 6
	DefaultWindow   = 1
)

var ErrSecureRandomUnavailable = fmt.Errorf("secure random source unavailable")

// GenerateSecret returns a fresh Base32-encoded secret. It fails only when
// the platform's secure random source does, which callers must treat as
// fatal rather than retry.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecureRandomUnavailable, err)
	}
	return EncodeBase32(buf), nil
}

// CodeAt computes the RFC 6238 code for the time step containing at:
// HMAC-SHA1 over the big-endian counter, dynamic truncation, reduction
// modulo 10^digits, zero-padded.
func CodeAt(secret string, at time.Time, step time.Duration, digits int) (string, error) {
	key, err := DecodeBase32(secret)
	if err != nil {
		return "", err
	}
	if len(key) == 0 || digits < 6 || digits > 8 || step <= 0 {
		return "", ErrInvalidEncoding
	}

	counter := uint64(at.Unix()) / uint64(step/time.Second)
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, value%mod), nil
}

// CurrentCode computes the code for the current time step with the default
// 30s step and 6 digits.
func CurrentCode(secret string) (string, error) {
	return CodeAt(secret, time.Now(), DefaultTimeStep, DefaultDigits)
}

// VerifyAt checks code against every step in [at-window, at+window]. All
// candidates are compared in constant time and every step is evaluated even
// after a match, so the response timing does not depend on which step (or
// whether any) matched.
func VerifyAt(code, secret string, at time.Time, window int) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" || window < 0 {
		return false
	}
	digits := len(code)
	if digits < 6 || digits > 8 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}

	matched := 0
	for i := -window; i <= window; i++ {
		candidate, err := CodeAt(secret, at.Add(time.Duration(i)*DefaultTimeStep), DefaultTimeStep, digits)
		if err != nil {
			return false
		}
		matched |= subtle.ConstantTimeCompare([]byte(candidate), []byte(code))
	}
	return matched == 1
}

// Verify checks code against the current clock with the default drift window.
func Verify(code, secret string, window int) bool {
	return VerifyAt(code, secret, time.Now(), window)
}

// ProvisioningURI builds the otpauth URL encoded into enrollment QR codes.
func ProvisioningURI(secret, accountName, issuer string) string {
	return "otpauth://totp/" + uriEscape(issuer) + ":" + uriEscape(accountName) +
		"?secret=" + secret + "&issuer=" + uriEscape(issuer)
}

func uriEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// RandomNumericCode returns a uniformly distributed zero-padded numeric code.
// rand.Int rejects biased draws, so no modulo bias.
func RandomNumericCode(digits int) (string, error) {
	mod := int64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(mod))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecureRandomUnavailable, err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

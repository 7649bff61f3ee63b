package internal

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

const linkTokenSize = 32

// NewLinkToken returns an opaque 32-byte random token, base64url encoded
// without padding. Used for email verification links.
func NewLinkToken() (string, error) {
	var raw [linkTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// otpSpan spans the six-digit codes 100000..999999.
var otpSpan = big.NewInt(900000)

// NewOTP returns a uniformly distributed six-digit code in [100000, 999999].
// The low bound keeps the first digit non-zero, so the code survives trips
// through systems that strip leading zeros.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", err
	}

	code := n.Int64() + 100000
	buf := [6]byte{}
	for i := 5; i >= 0; i-- {
		buf[i] = byte('0' + code%10)
		code /= 10
	}
	return string(buf[:]), nil
}

// IsNumeric reports whether s is non-empty and all ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package utils

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strings"
)

// GenerateNumericCode returns a uniformly random decimal code of exactly digits characters.
func GenerateNumericCode(digits int) (string, error) {
	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// GenerateToken returns n random bytes encoded as URL-safe base64.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

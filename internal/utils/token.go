package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// RandomToken returns an unguessable URL-safe token of n random bytes.
func RandomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// NumericCode returns a zero-padded numeric code of the given length.
func NumericCode(digits int) string {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return fmt.Sprintf("%0*d", digits, 0)
	}
	return fmt.Sprintf("%0*d", digits, n)
}

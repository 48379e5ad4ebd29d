package util

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateToken returns n bytes of CSPRNG output as a hex string. Share and
// anonymous capability tokens use n = 32, which makes enumeration infeasible.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

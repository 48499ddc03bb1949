package tokens

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
)

// codeEncoding drops padding so codes stay URL and QR friendly.
var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// generateCode returns a random uppercase token code of the requested length.
func generateCode(length int) (string, error) {
	if length <= 0 {
		length = 20
	}
	// Each base32 character carries 5 bits.
	raw := make([]byte, (length*5+7)/8)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	code := codeEncoding.EncodeToString(raw)
	return code[:length], nil
}

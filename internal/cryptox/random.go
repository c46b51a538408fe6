package cryptox

import "encoding/hex"

// RandomHex returns size random bytes hex encoded, so the string is twice
// as long as size.
func RandomHex(size int) (string, error) {
	b, err := RandomBytes(size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Wipe zeroes b. Use it on secrets once they are no longer needed.
func Wipe(b []byte) {
	clear(b)
}

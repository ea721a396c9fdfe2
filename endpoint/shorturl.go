package endpoint

import "crypto/rand"

const (
	shortURLLength   = 8
	shortURLAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateShortURL creates a random 8-character alphanumeric alias.
// Uniqueness is enforced by the store; the service retries on collision.
func GenerateShortURL() string {
	b := make([]byte, shortURLLength)
	if _, err := rand.Read(b); err != nil {
		panic("hookline: failed to generate short URL: " + err.Error())
	}
	for i := range b {
		b[i] = shortURLAlphabet[int(b[i])%len(shortURLAlphabet)]
	}
	return string(b)
}

// Package signature provides webhook request authentication: verification of
// inbound requests against an endpoint's configured auth method, and signing
// of outbound deliveries using the same scheme.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign generates the HMAC-SHA256 signature for the given payload.
// Returns a versioned signature in the format "sha256=<hex>", the form
// carried in X-Webhook-Signature and checked on inbound requests.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks whether sig matches the expected HMAC-SHA256
// signature for the payload and secret, in constant time.
func VerifySignature(payload []byte, secret, sig string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// SecretsEqual compares two shared secrets in constant time.
func SecretsEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

package signature

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Method is an endpoint's inbound authentication method.
type Method string

// Supported authentication methods.
const (
	MethodNone         Method = "none"
	MethodHMAC         Method = "hmac"
	MethodSharedSecret Method = "shared_secret"
	MethodBearer       Method = "bearer"
)

// ValidMethod reports whether m is a known authentication method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodNone, MethodHMAC, MethodSharedSecret, MethodBearer:
		return true
	}
	return false
}

// Headers inspected on inbound requests.
const (
	HeaderSignature    = "X-Signature-256"
	HeaderHubSignature = "X-Hub-Signature-256"
	HeaderSharedSecret = "X-Webhook-Secret"
)

// VerifyRequest checks an inbound request body and headers against the
// endpoint's configured method and secret. Missing or malformed credentials
// fail closed. All comparisons are constant time.
func VerifyRequest(m Method, secret string, body []byte, headers http.Header) bool {
	switch m {
	case MethodNone, "":
		return true

	case MethodHMAC:
		sig := headers.Get(HeaderSignature)
		if sig == "" {
			sig = headers.Get(HeaderHubSignature)
		}
		if sig == "" {
			return false
		}
		return VerifySignature(body, secret, sig)

	case MethodSharedSecret:
		provided := headers.Get(HeaderSharedSecret)
		if provided == "" {
			provided = bodySecret(body)
		}
		if provided == "" {
			return false
		}
		return SecretsEqual(provided, secret)

	case MethodBearer:
		token, ok := strings.CutPrefix(headers.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			return false
		}
		return SecretsEqual(token, secret)
	}

	return false
}

// bodySecret extracts the top-level "secret" field from a JSON body, for
// senders that cannot set custom headers.
func bodySecret(body []byte) string {
	var doc struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	return doc.Secret
}

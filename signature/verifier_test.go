package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/hookline/hookline/signature"
)

func hmacHeader(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestSignKnownVector(t *testing.T) {
	payload := []byte(`{"event":"test"}`)
	secret := "whsec_testsecret123"

	got := signature.Sign(payload, secret)

	// Compute expected HMAC-SHA256 independently.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestVerifyRequestNoneAlwaysPasses(t *testing.T) {
	if !signature.VerifyRequest(signature.MethodNone, "", []byte("anything"), http.Header{}) {
		t.Error("method none must always pass")
	}
}

func TestVerifyRequestHMAC(t *testing.T) {
	body := []byte(`{"x":1}`)
	secret := "whsec_abc"

	h := http.Header{}
	h.Set(signature.HeaderSignature, hmacHeader(body, secret))
	if !signature.VerifyRequest(signature.MethodHMAC, secret, body, h) {
		t.Error("valid X-Signature-256 must pass")
	}

	h = http.Header{}
	h.Set(signature.HeaderHubSignature, hmacHeader(body, secret))
	if !signature.VerifyRequest(signature.MethodHMAC, secret, body, h) {
		t.Error("valid X-Hub-Signature-256 must pass")
	}

	h = http.Header{}
	h.Set(signature.HeaderSignature, hmacHeader(body, "wrong-secret"))
	if signature.VerifyRequest(signature.MethodHMAC, secret, body, h) {
		t.Error("signature from wrong secret must fail")
	}

	// Missing header fails closed.
	if signature.VerifyRequest(signature.MethodHMAC, secret, body, http.Header{}) {
		t.Error("missing signature header must fail")
	}
}

func TestVerifyRequestSharedSecret(t *testing.T) {
	secret := "s3cret"

	h := http.Header{}
	h.Set(signature.HeaderSharedSecret, secret)
	if !signature.VerifyRequest(signature.MethodSharedSecret, secret, nil, h) {
		t.Error("matching header secret must pass")
	}

	// Secret may arrive as a body field instead.
	body := []byte(`{"secret":"s3cret","x":1}`)
	if !signature.VerifyRequest(signature.MethodSharedSecret, secret, body, http.Header{}) {
		t.Error("matching body secret must pass")
	}

	if signature.VerifyRequest(signature.MethodSharedSecret, secret, []byte(`{}`), http.Header{}) {
		t.Error("missing secret must fail closed")
	}

	h = http.Header{}
	h.Set(signature.HeaderSharedSecret, "nope")
	if signature.VerifyRequest(signature.MethodSharedSecret, secret, nil, h) {
		t.Error("wrong secret must fail")
	}
}

func TestVerifyRequestBearer(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer tok123")
	if !signature.VerifyRequest(signature.MethodBearer, "tok123", nil, h) {
		t.Error("matching bearer token must pass")
	}

	h.Set("Authorization", "Bearer other")
	if signature.VerifyRequest(signature.MethodBearer, "tok123", nil, h) {
		t.Error("wrong bearer token must fail")
	}

	h.Set("Authorization", "Basic tok123")
	if signature.VerifyRequest(signature.MethodBearer, "tok123", nil, h) {
		t.Error("non-bearer authorization must fail")
	}

	if signature.VerifyRequest(signature.MethodBearer, "tok123", nil, http.Header{}) {
		t.Error("missing authorization must fail closed")
	}
}

func TestVerifyRequestUnknownMethodFailsClosed(t *testing.T) {
	if signature.VerifyRequest(signature.Method("magic"), "x", nil, http.Header{}) {
		t.Error("unknown method must fail closed")
	}
}

func TestGenerateSecretFormat(t *testing.T) {
	s := signature.GenerateSecret()
	if len(s) != 70 || s[:6] != "whsec_" {
		t.Errorf("unexpected secret format: %q", s)
	}

	k := signature.GenerateAPIKey()
	if len(k) != 68 || k[:4] != "whk_" {
		t.Errorf("unexpected API key format: %q", k)
	}

	if signature.GenerateSecret() == signature.GenerateSecret() {
		t.Error("secrets should not repeat")
	}
}

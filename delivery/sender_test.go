package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/signature"
)

const testSecret = "whsec_test_secret_1234567890abcdef1234567890abcdef"

func newTestEndpoint(method signature.Method) *endpoint.Endpoint {
	return &endpoint.Endpoint{
		Entity:     entity.New(),
		ID:         id.NewEndpointID(),
		ProjectID:  id.NewProjectID(),
		Name:       "orders",
		AuthMethod: method,
		AuthSecret: testSecret,
		Retry:      endpoint.DefaultRetryConfig(),
		Enabled:    true,
	}
}

func newTestDelivery(ep *endpoint.Endpoint, url string) *delivery.Delivery {
	return &delivery.Delivery{
		Entity:         entity.New(),
		ID:             id.NewDeliveryID(),
		EventID:        id.NewEventID(),
		EndpointID:     ep.ID,
		DestinationURL: url,
		Payload:        json.RawMessage(`{"hello":"world"}`),
		State:          delivery.StatePending,
		AttemptCount:   1,
		MaxAttempts:    3,
	}
}

func TestSenderHappyPath(t *testing.T) {
	var receivedHeaders http.Header
	var receivedBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			t.Error(err)
		}
		receivedBody = string(bodyBytes)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sender := delivery.NewSender(5 * time.Second)
	ep := newTestEndpoint(signature.MethodNone)
	d := newTestDelivery(ep, srv.URL)

	result := sender.Send(context.Background(), ep, d)

	if result.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", result.StatusCode)
	}
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if receivedBody != `{"hello":"world"}` {
		t.Errorf("body = %s", receivedBody)
	}
	if receivedHeaders.Get("Content-Type") != "application/json" {
		t.Error("missing Content-Type")
	}
	if receivedHeaders.Get("X-Hookline-Event-ID") != d.EventID.String() {
		t.Error("missing event ID header")
	}
	if receivedHeaders.Get("X-Hookline-Delivery-ID") != d.ID.String() {
		t.Error("missing delivery ID header")
	}
	if result.Response != `{"ok":true}` {
		t.Errorf("response = %s", result.Response)
	}
}

func TestSenderHMACSignature(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(5 * time.Second)
	ep := newTestEndpoint(signature.MethodHMAC)
	d := newTestDelivery(ep, srv.URL)

	sender.Send(context.Background(), ep, d)

	want := signature.Sign(d.Payload, testSecret)
	if got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}
}

func TestSenderSharedSecretHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(signature.HeaderSharedSecret)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(5 * time.Second)
	ep := newTestEndpoint(signature.MethodSharedSecret)
	d := newTestDelivery(ep, srv.URL)

	sender.Send(context.Background(), ep, d)

	if got != testSecret {
		t.Errorf("shared secret header = %s", got)
	}
}

func TestSenderBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(5 * time.Second)
	ep := newTestEndpoint(signature.MethodBearer)
	ep.AuthSecret = "tok123"
	d := newTestDelivery(ep, srv.URL)

	sender.Send(context.Background(), ep, d)

	if got != "Bearer tok123" {
		t.Errorf("authorization = %s", got)
	}
}

func TestSenderCustomHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(5 * time.Second)
	ep := newTestEndpoint(signature.MethodNone)
	ep.Headers = map[string]string{
		"X-Custom":   "yes",
		"User-Agent": "TenantAgent/2.0",
	}
	d := newTestDelivery(ep, srv.URL)

	sender.Send(context.Background(), ep, d)

	if got.Get("X-Custom") != "yes" {
		t.Error("custom header not sent")
	}
	if got.Get("User-Agent") != "TenantAgent/2.0" {
		t.Error("tenant headers must override defaults")
	}
}

func TestSenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(50 * time.Millisecond)
	ep := newTestEndpoint(signature.MethodNone)
	d := newTestDelivery(ep, srv.URL)

	result := sender.Send(context.Background(), ep, d)

	if result.Error == "" {
		t.Fatal("expected timeout error")
	}
	if result.StatusCode != 0 {
		t.Errorf("status = %d, want 0", result.StatusCode)
	}
}

func TestSenderEndpointTimeoutOverridesDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Default would time out, but the endpoint allows 2s.
	sender := delivery.NewSender(10 * time.Millisecond)
	ep := newTestEndpoint(signature.MethodNone)
	ep.RequestTimeout = 2
	d := newTestDelivery(ep, srv.URL)

	result := sender.Send(context.Background(), ep, d)

	if result.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (err %s), want 200", result.StatusCode, result.Error)
	}
}

func TestSenderConnectionRefused(t *testing.T) {
	sender := delivery.NewSender(time.Second)
	ep := newTestEndpoint(signature.MethodNone)
	d := newTestDelivery(ep, "http://127.0.0.1:1")

	result := sender.Send(context.Background(), ep, d)

	if result.Error == "" {
		t.Fatal("expected connection error")
	}
}

func TestSenderTruncatesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	sender := delivery.NewSender(5 * time.Second)
	ep := newTestEndpoint(signature.MethodNone)
	d := newTestDelivery(ep, srv.URL)

	result := sender.Send(context.Background(), ep, d)

	if len(result.Response) != 1024 {
		t.Errorf("response length = %d, want 1024", len(result.Response))
	}
}

package endpoint_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	hookline "github.com/hookline/hookline"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService() *endpoint.Service {
	s := memory.New()
	return endpoint.NewService(s, nil, nil)
}

func createInput() endpoint.Input {
	return endpoint.Input{
		ProjectID:       id.NewProjectID(),
		Name:            "Orders",
		URLPath:         "acme/orders",
		DestinationURLs: []string{"https://example.com/webhook"},
		AuthMethod:      "hmac",
	}
}

func TestCreate(t *testing.T) {
	svc := newService()

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}

	if ep.ID.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if len(ep.ShortURL) != 8 {
		t.Fatalf("short URL length: got %d, want 8", len(ep.ShortURL))
	}
	if !strings.HasPrefix(ep.AuthSecret, "whsec_") {
		t.Fatalf("expected auto-generated secret, got %q", ep.AuthSecret)
	}
	if !ep.Enabled {
		t.Fatal("expected endpoint to be enabled")
	}
	if ep.Slug != "acme/orders" {
		t.Fatalf("slug: got %q, want url path fallback", ep.Slug)
	}
	if ep.Retry.MaxAttempts != endpoint.DefaultRetryConfig().MaxAttempts {
		t.Fatalf("retry: got %+v, want default", ep.Retry)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService()

	tests := []struct {
		name string
		in   endpoint.Input
	}{
		{"missing project", endpoint.Input{Name: "x", URLPath: "a/b"}},
		{"missing name", endpoint.Input{ProjectID: id.NewProjectID(), URLPath: "a/b"}},
		{"missing url path", endpoint.Input{ProjectID: id.NewProjectID(), Name: "x"}},
		{"bad destination", endpoint.Input{
			ProjectID:       id.NewProjectID(),
			Name:            "x",
			URLPath:         "a/b",
			DestinationURLs: []string{"not a url"},
		}},
		{"unknown auth method", endpoint.Input{
			ProjectID:  id.NewProjectID(),
			Name:       "x",
			URLPath:    "a/b",
			AuthMethod: "magic",
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx(), tc.in)
			var verr *endpoint.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateDuplicateURLPath(t *testing.T) {
	svc := newService()

	in := createInput()
	if _, err := svc.Create(ctx(), in); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx(), in)
	if !errors.Is(err, endpoint.ErrURLPathTaken) {
		t.Fatalf("expected ErrURLPathTaken, got %v", err)
	}
}

func TestCreateCustomRetryConfig(t *testing.T) {
	svc := newService()

	in := createInput()
	in.RetryConfig = []byte(`{"max_attempts":7,"retry_delay":10,"backoff_multiplier":3}`)

	ep, err := svc.Create(ctx(), in)
	if err != nil {
		t.Fatal(err)
	}
	if ep.Retry.MaxAttempts != 7 {
		t.Fatalf("max attempts: got %d, want 7", ep.Retry.MaxAttempts)
	}
}

func TestResolveShortURL(t *testing.T) {
	svc := newService()

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.ResolveShortURL(ctx(), ep.ShortURL)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != ep.ID {
		t.Fatal("resolved wrong endpoint")
	}

	_, err = svc.ResolveShortURL(ctx(), "nope1234")
	if !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestResolveURLPath(t *testing.T) {
	svc := newService()

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.ResolveURLPath(ctx(), "acme/orders")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != ep.ID {
		t.Fatal("resolved wrong endpoint")
	}
}

func TestResolveThroughCache(t *testing.T) {
	s := memory.New()
	cache := endpoint.NewCache(s, time.Minute)
	svc := endpoint.NewService(s, cache, nil)

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}

	// Two lookups; the second is served from cache.
	for range 2 {
		got, err := svc.ResolveShortURL(ctx(), ep.ShortURL)
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != ep.ID {
			t.Fatal("resolved wrong endpoint")
		}
	}
}

func TestShortURLBatchUniqueness(t *testing.T) {
	svc := newService()

	isAlphanumeric := func(s string) bool {
		for _, r := range s {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			default:
				return false
			}
		}
		return true
	}

	seen := make(map[string]bool, 120)
	for i := range 120 {
		in := createInput()
		in.URLPath = fmt.Sprintf("acme/orders-%d", i)
		ep, err := svc.Create(ctx(), in)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if len(ep.ShortURL) != 8 || !isAlphanumeric(ep.ShortURL) {
			t.Fatalf("short URL %q is not 8 alphanumeric characters", ep.ShortURL)
		}
		if seen[ep.ShortURL] {
			t.Fatalf("short URL %q issued twice", ep.ShortURL)
		}
		seen[ep.ShortURL] = true
	}
}

func TestUpdateURLPathPurgesOldCacheKey(t *testing.T) {
	s := memory.New()
	cache := endpoint.NewCache(s, time.Minute)
	svc := endpoint.NewService(s, cache, nil)

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}

	// Warm the cache on the original path.
	if _, err := svc.ResolveURLPath(ctx(), "acme/orders"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx(), ep.ID, endpoint.Input{URLPath: "acme/orders-v2"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ResolveURLPath(ctx(), "acme/orders"); !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatalf("expected old path to stop resolving, got %v", err)
	}
	got, err := svc.ResolveURLPath(ctx(), "acme/orders-v2")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != ep.ID || got.URLPath != "acme/orders-v2" {
		t.Fatalf("resolved wrong endpoint: %+v", got)
	}
}

func TestUpdate(t *testing.T) {
	svc := newService()

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}
	shortURL := ep.ShortURL

	updated, err := svc.Update(ctx(), ep.ID, endpoint.Input{
		Name:            "Orders v2",
		DestinationURLs: []string{"https://example.com/v2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Orders v2" {
		t.Fatalf("name: got %q", updated.Name)
	}
	if updated.DestinationURLs[0] != "https://example.com/v2" {
		t.Fatalf("destinations: got %v", updated.DestinationURLs)
	}
	if updated.ShortURL != shortURL {
		t.Fatal("short URL must be immutable")
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc := newService()

	_, err := svc.Update(ctx(), id.NewEndpointID(), endpoint.Input{Name: "x"})
	if !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newService()

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}

	_, err = svc.Get(ctx(), ep.ID)
	if !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestSetEnabled(t *testing.T) {
	svc := newService()

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SetEnabled(ctx(), ep.ID, false); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Get(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Fatal("expected endpoint to be disabled")
	}
}

func TestRotateSecret(t *testing.T) {
	svc := newService()

	ep, err := svc.Create(ctx(), createInput())
	if err != nil {
		t.Fatal(err)
	}
	old := ep.AuthSecret

	secret, err := svc.RotateSecret(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if secret == old {
		t.Fatal("expected a new secret")
	}
	if !strings.HasPrefix(secret, "whsec_") {
		t.Fatalf("secret format: got %q", secret)
	}

	got, err := svc.Get(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AuthSecret != secret {
		t.Fatal("rotated secret not persisted")
	}
}

func TestList(t *testing.T) {
	svc := newService()

	projID := id.NewProjectID()
	for i, path := range []string{"acme/a", "acme/b", "acme/c"} {
		in := createInput()
		in.ProjectID = projID
		in.URLPath = path
		in.Name = path
		if _, err := svc.Create(ctx(), in); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	eps, err := svc.List(ctx(), projID, endpoint.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(eps))
	}

	// Another project sees nothing.
	eps, err = svc.List(ctx(), id.NewProjectID(), endpoint.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 0 {
		t.Fatalf("expected 0 endpoints, got %d", len(eps))
	}
}

package project_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService() *project.Service {
	return project.NewService(memory.New(), nil)
}

func TestCreate(t *testing.T) {
	svc := newService()

	p, err := svc.Create(ctx(), project.Input{Name: "Acme Payments"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Slug != "acme-payments" {
		t.Errorf("expected derived slug acme-payments, got %q", p.Slug)
	}
	if !strings.HasPrefix(p.APIKey, "whk_") {
		t.Errorf("expected whk_ API key, got %q", p.APIKey)
	}
	if !strings.HasPrefix(p.WebhookSecret, "whsec_") {
		t.Errorf("expected whsec_ secret, got %q", p.WebhookSecret)
	}
	if !p.Enabled {
		t.Error("expected new project to be enabled")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService()

	cases := []struct {
		name  string
		in    project.Input
		field string
	}{
		{"missing name", project.Input{}, "name"},
		{"bad slug", project.Input{Name: "Acme", Slug: "Not A Slug"}, "slug"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx(), tc.in)
			var verr *project.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	svc := newService()

	p, err := svc.Create(ctx(), project.Input{Name: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Update(ctx(), p.ID, project.Input{Name: "Acme Corp", Slug: "acme-corp"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "Acme Corp" || got.Slug != "acme-corp" {
		t.Errorf("unexpected project after update: %+v", got)
	}
}

func TestSetEnabled(t *testing.T) {
	svc := newService()

	p, err := svc.Create(ctx(), project.Input{Name: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.SetEnabled(ctx(), p.ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	got, err := svc.Get(ctx(), p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Enabled {
		t.Error("expected project to be disabled")
	}
}

func TestRotateAPIKey(t *testing.T) {
	svc := newService()

	p, err := svc.Create(ctx(), project.Input{Name: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	old := p.APIKey

	key, err := svc.RotateAPIKey(ctx(), p.ID)
	if err != nil {
		t.Fatalf("RotateAPIKey: %v", err)
	}
	if key == old {
		t.Error("expected a new API key after rotation")
	}

	if _, err := svc.Authenticate(ctx(), old); !errors.Is(err, hookline.ErrProjectNotFound) {
		t.Errorf("expected old key to stop authenticating, got %v", err)
	}
	got, err := svc.Authenticate(ctx(), key)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected project %s, got %s", p.ID, got.ID)
	}
}

func TestDelete(t *testing.T) {
	svc := newService()

	p, err := svc.Create(ctx(), project.Input{Name: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx(), p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx(), p.ID); !errors.Is(err, hookline.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	svc := newService()

	for _, name := range []string{"One", "Two", "Three"} {
		if _, err := svc.Create(ctx(), project.Input{Name: name}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	all, err := svc.List(ctx(), project.ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 projects, got %d", len(all))
	}

	p, _ := svc.List(ctx(), project.ListOpts{})
	if err := svc.SetEnabled(ctx(), p[0].ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	enabled := true
	active, err := svc.List(ctx(), project.ListOpts{Enabled: &enabled})
	if err != nil {
		t.Fatalf("List enabled: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("expected 2 enabled projects, got %d", len(active))
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme Payments":   "acme-payments",
		"  Hello, World ": "hello-world",
		"already-a-slug":  "already-a-slug",
		"UPPER CASE 123":  "upper-case-123",
	}
	for in, want := range cases {
		if got := project.Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

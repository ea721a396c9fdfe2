package project

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/signature"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Input is the creation/update payload for projects.
type Input struct {
	// Name is the human-readable project name.
	Name string `json:"name"`

	// Slug is a URL-safe identifier. Derived from Name when empty on create.
	Slug string `json:"slug,omitempty"`
}

// Service provides project management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new project service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Create registers a new project with generated credentials.
func (svc *Service) Create(ctx context.Context, in Input) (*Project, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}

	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Name)
	}
	if !slugPattern.MatchString(slug) {
		return nil, &ValidationError{Field: "slug", Message: "must be lowercase alphanumeric with hyphens"}
	}

	p := &Project{
		Entity:        entity.New(),
		ID:            id.NewProjectID(),
		Name:          in.Name,
		Slug:          slug,
		APIKey:        signature.GenerateAPIKey(),
		WebhookSecret: signature.GenerateSecret(),
		Enabled:       true,
	}

	if err := svc.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	svc.logger.DebugContext(ctx, "project created", "project_id", p.ID, "slug", p.Slug)

	return p, nil
}

// Get returns a project by ID.
func (svc *Service) Get(ctx context.Context, projID id.ID) (*Project, error) {
	return svc.store.GetProject(ctx, projID)
}

// Update modifies a project's name and slug.
func (svc *Service) Update(ctx context.Context, projID id.ID, in Input) (*Project, error) {
	p, err := svc.store.GetProject(ctx, projID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Slug != "" {
		if !slugPattern.MatchString(in.Slug) {
			return nil, &ValidationError{Field: "slug", Message: "must be lowercase alphanumeric with hyphens"}
		}
		p.Slug = in.Slug
	}

	if err := svc.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// SetEnabled activates or deactivates a project.
func (svc *Service) SetEnabled(ctx context.Context, projID id.ID, enabled bool) error {
	p, err := svc.store.GetProject(ctx, projID)
	if err != nil {
		return err
	}
	p.Enabled = enabled
	return svc.store.UpdateProject(ctx, p)
}

// RotateAPIKey generates a new management API key for a project.
func (svc *Service) RotateAPIKey(ctx context.Context, projID id.ID) (string, error) {
	p, err := svc.store.GetProject(ctx, projID)
	if err != nil {
		return "", err
	}

	p.APIKey = signature.GenerateAPIKey()
	if err := svc.store.UpdateProject(ctx, p); err != nil {
		return "", err
	}

	return p.APIKey, nil
}

// Delete removes a project and everything it owns. The cascade is explicit
// in every store backend: endpoints, rules, transformations, events,
// deliveries, attempts, and DLQ entries go with it.
func (svc *Service) Delete(ctx context.Context, projID id.ID) error {
	if err := svc.store.DeleteProject(ctx, projID); err != nil {
		return err
	}
	svc.logger.DebugContext(ctx, "project deleted", "project_id", projID)
	return nil
}

// List returns projects.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Project, error) {
	return svc.store.ListProjects(ctx, opts)
}

// Authenticate resolves a management API key to its project.
func (svc *Service) Authenticate(ctx context.Context, apiKey string) (*Project, error) {
	return svc.store.GetProjectByAPIKey(ctx, apiKey)
}

// Slugify derives a slug from a project name.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "project validation: " + e.Field + ": " + e.Message
}

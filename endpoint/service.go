package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/signature"
)

// shortURLAttempts bounds regeneration when a generated alias collides.
const shortURLAttempts = 5

// Service provides endpoint management operations.
type Service struct {
	store  Store
	cache  *Cache
	logger *slog.Logger
}

// NewService creates a new endpoint service backed by the given store and
// lookup cache. A nil cache disables cached resolution.
func NewService(store Store, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Create registers a new webhook endpoint. The short URL is generated here,
// once, and never changes afterwards.
func (svc *Service) Create(ctx context.Context, in Input) (*Endpoint, error) {
	if in.ProjectID.IsNil() {
		return nil, &ValidationError{Field: "project_id", Message: "required"}
	}
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}
	if in.URLPath == "" {
		return nil, &ValidationError{Field: "url_path", Message: "required"}
	}
	for _, dest := range in.DestinationURLs {
		if _, err := url.ParseRequestURI(dest); err != nil {
			return nil, &ValidationError{Field: "destination_urls", Message: "invalid URL: " + dest}
		}
	}

	method := signature.Method(in.AuthMethod)
	if method == "" {
		method = signature.MethodNone
	}
	if !signature.ValidMethod(method) {
		return nil, &ValidationError{Field: "auth_method", Message: "unknown method"}
	}

	secret := in.AuthSecret
	if secret == "" && method == signature.MethodHMAC {
		secret = signature.GenerateSecret()
	}
	if secret == "" && method != signature.MethodNone {
		return nil, &ValidationError{Field: "auth_secret", Message: "required for " + string(method)}
	}

	retry, err := ParseRetryConfig(in.RetryConfig)
	if err != nil {
		return nil, err
	}

	slug := in.Slug
	if slug == "" {
		slug = in.URLPath
	}

	ep := &Endpoint{
		Entity:          entity.New(),
		ID:              id.NewEndpointID(),
		ProjectID:       in.ProjectID,
		Name:            in.Name,
		Slug:            slug,
		URLPath:         in.URLPath,
		DestinationURLs: in.DestinationURLs,
		AuthMethod:      method,
		AuthSecret:      secret,
		Retry:           retry,
		Headers:         in.Headers,
		RequestTimeout:  in.RequestTimeout,
		RateLimit:       in.RateLimit,
		Enabled:         true,
	}

	// Short URLs are random; regenerate on the (rare) collision.
	for attempt := 0; ; attempt++ {
		ep.ShortURL = GenerateShortURL()
		err := svc.store.CreateEndpoint(ctx, ep)
		if err == nil {
			break
		}
		if errors.Is(err, ErrShortURLTaken) && attempt < shortURLAttempts-1 {
			continue
		}
		return nil, err
	}

	svc.logger.DebugContext(ctx, "endpoint created",
		"endpoint_id", ep.ID,
		"project_id", ep.ProjectID,
		"url_path", ep.URLPath,
		"short_url", ep.ShortURL,
	)

	return ep, nil
}

// Get returns an endpoint by ID.
func (svc *Service) Get(ctx context.Context, epID id.ID) (*Endpoint, error) {
	return svc.store.GetEndpoint(ctx, epID)
}

// ResolveURLPath returns the endpoint registered at an ingestion path,
// through the lookup cache when one is configured.
func (svc *Service) ResolveURLPath(ctx context.Context, urlPath string) (*Endpoint, error) {
	if svc.cache != nil {
		return svc.cache.GetByURLPath(ctx, urlPath)
	}
	return svc.store.GetEndpointByURLPath(ctx, urlPath)
}

// ResolveShortURL returns the endpoint behind an 8-character alias,
// through the lookup cache when one is configured.
func (svc *Service) ResolveShortURL(ctx context.Context, shortURL string) (*Endpoint, error) {
	if svc.cache != nil {
		return svc.cache.GetByShortURL(ctx, shortURL)
	}
	return svc.store.GetEndpointByShortURL(ctx, shortURL)
}

// Update modifies an existing endpoint. The short URL is immutable and
// ignored on update.
func (svc *Service) Update(ctx context.Context, epID id.ID, in Input) (*Endpoint, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return nil, err
	}
	prevPath := ep.URLPath

	if in.Name != "" {
		ep.Name = in.Name
	}
	if in.Slug != "" {
		ep.Slug = in.Slug
	}
	if in.URLPath != "" {
		ep.URLPath = in.URLPath
	}
	if in.DestinationURLs != nil {
		for _, dest := range in.DestinationURLs {
			if _, err := url.ParseRequestURI(dest); err != nil {
				return nil, &ValidationError{Field: "destination_urls", Message: "invalid URL: " + dest}
			}
		}
		ep.DestinationURLs = in.DestinationURLs
	}
	if in.AuthMethod != "" {
		method := signature.Method(in.AuthMethod)
		if !signature.ValidMethod(method) {
			return nil, &ValidationError{Field: "auth_method", Message: "unknown method"}
		}
		ep.AuthMethod = method
	}
	if in.AuthSecret != "" {
		ep.AuthSecret = in.AuthSecret
	}
	if len(in.RetryConfig) > 0 {
		retry, err := ParseRetryConfig(in.RetryConfig)
		if err != nil {
			return nil, err
		}
		ep.Retry = retry
	}
	if in.Headers != nil {
		ep.Headers = in.Headers
	}
	if in.RequestTimeout > 0 {
		ep.RequestTimeout = in.RequestTimeout
	}
	if in.RateLimit >= 0 {
		ep.RateLimit = in.RateLimit
	}

	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return nil, err
	}

	if svc.cache != nil {
		svc.cache.Invalidate(ep)
		// A renamed url_path leaves its old key behind; purge that too.
		if prevPath != ep.URLPath {
			svc.cache.InvalidateKeys(prevPath, ep.ShortURL)
		}
	}

	return ep, nil
}

// Delete removes an endpoint and everything it owns.
func (svc *Service) Delete(ctx context.Context, epID id.ID) error {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return err
	}

	if err := svc.store.DeleteEndpoint(ctx, epID); err != nil {
		return err
	}

	if svc.cache != nil {
		svc.cache.Invalidate(ep)
	}

	return nil
}

// List returns endpoints for a project.
func (svc *Service) List(ctx context.Context, projID id.ID, opts ListOpts) ([]*Endpoint, error) {
	return svc.store.ListEndpoints(ctx, projID, opts)
}

// SetEnabled enables or disables an endpoint. Deactivation blocks future
// ingestion and replays but never aborts deliveries already dispatched.
func (svc *Service) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	if err := svc.store.SetEndpointEnabled(ctx, epID, enabled); err != nil {
		return err
	}

	if svc.cache != nil {
		if ep, err := svc.store.GetEndpoint(ctx, epID); err == nil {
			svc.cache.Invalidate(ep)
		}
	}

	return nil
}

// RotateSecret generates a new auth secret for an endpoint.
func (svc *Service) RotateSecret(ctx context.Context, epID id.ID) (string, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return "", err
	}

	newSecret := signature.GenerateSecret()

	ep.AuthSecret = newSecret
	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return "", err
	}

	if svc.cache != nil {
		svc.cache.Invalidate(ep)
	}

	return newSecret, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "endpoint validation: " + e.Field + ": " + e.Message
}

package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hookline/hookline"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/signature"
)

// endpointModel is the JSON representation stored in Redis.
type endpointModel struct {
	ID              string                `json:"id"`
	ProjectID       string                `json:"project_id"`
	Name            string                `json:"name"`
	Slug            string                `json:"slug"`
	URLPath         string                `json:"url_path"`
	ShortURL        string                `json:"short_url"`
	DestinationURLs []string              `json:"destination_urls"`
	AuthMethod      string                `json:"auth_method"`
	AuthSecret      string                `json:"auth_secret"`
	Retry           endpoint.RetryConfig  `json:"retry_config"`
	Headers         map[string]string     `json:"headers,omitempty"`
	RequestTimeout  int                   `json:"request_timeout"`
	RateLimit       int                   `json:"rate_limit"`
	Enabled         bool                  `json:"enabled"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	return &endpointModel{
		ID:              ep.ID.String(),
		ProjectID:       ep.ProjectID.String(),
		Name:            ep.Name,
		Slug:            ep.Slug,
		URLPath:         ep.URLPath,
		ShortURL:        ep.ShortURL,
		DestinationURLs: ep.DestinationURLs,
		AuthMethod:      string(ep.AuthMethod),
		AuthSecret:      ep.AuthSecret,
		Retry:           ep.Retry,
		Headers:         ep.Headers,
		RequestTimeout:  ep.RequestTimeout,
		RateLimit:       ep.RateLimit,
		Enabled:         ep.Enabled,
		CreatedAt:       ep.CreatedAt,
		UpdatedAt:       ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}
	projID, err := id.ParseProjectID(m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID %q: %w", m.ProjectID, err)
	}
	return &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              epID,
		ProjectID:       projID,
		Name:            m.Name,
		Slug:            m.Slug,
		URLPath:         m.URLPath,
		ShortURL:        m.ShortURL,
		DestinationURLs: m.DestinationURLs,
		AuthMethod:      signature.Method(m.AuthMethod),
		AuthSecret:      m.AuthSecret,
		Retry:           m.Retry,
		Headers:         m.Headers,
		RequestTimeout:  m.RequestTimeout,
		RateLimit:       m.RateLimit,
		Enabled:         m.Enabled,
	}, nil
}

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)

	// Claim the uniqueness keys before writing the entity; SET NX makes
	// the claim atomic.
	ok, err := s.rdb.SetNX(ctx, uniqueEndpointShort+m.ShortURL, m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: create endpoint short url claim: %w", err)
	}
	if !ok {
		return endpoint.ErrShortURLTaken
	}

	ok, err = s.rdb.SetNX(ctx, uniqueEndpointPath+m.URLPath, m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: create endpoint url path claim: %w", err)
	}
	if !ok {
		s.rdb.Del(ctx, uniqueEndpointShort+m.ShortURL)
		return endpoint.ErrURLPathTaken
	}

	key := entityKey(prefixEndpoint, m.ID)
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: create endpoint: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, zEndpointProj+m.ProjectID, goredis.Z{
		Score:  scoreFromTime(m.CreatedAt),
		Member: m.ID,
	}).Err(); err != nil {
		return fmt.Errorf("hookline/redis: create endpoint indexes: %w", err)
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	var m endpointModel
	if err := s.getEntity(ctx, entityKey(prefixEndpoint, epID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get endpoint: %w", err)
	}
	return fromEndpointModel(&m)
}

func (s *Store) GetEndpointByURLPath(ctx context.Context, urlPath string) (*endpoint.Endpoint, error) {
	epID, err := s.rdb.Get(ctx, uniqueEndpointPath+urlPath).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get endpoint by url path: %w", err)
	}

	var m endpointModel
	if err := s.getEntity(ctx, entityKey(prefixEndpoint, epID), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get endpoint: %w", err)
	}
	return fromEndpointModel(&m)
}

func (s *Store) GetEndpointByShortURL(ctx context.Context, shortURL string) (*endpoint.Endpoint, error) {
	epID, err := s.rdb.Get(ctx, uniqueEndpointShort+shortURL).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get endpoint by short url: %w", err)
	}

	var m endpointModel
	if err := s.getEntity(ctx, entityKey(prefixEndpoint, epID), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get endpoint: %w", err)
	}
	return fromEndpointModel(&m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	key := entityKey(prefixEndpoint, ep.ID.String())

	var existing endpointModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return hookline.ErrEndpointNotFound
		}
		return fmt.Errorf("hookline/redis: update endpoint get: %w", err)
	}

	m := toEndpointModel(ep)
	m.UpdatedAt = now()

	// The url path may change; re-claim before committing.
	if existing.URLPath != m.URLPath {
		ok, err := s.rdb.SetNX(ctx, uniqueEndpointPath+m.URLPath, m.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("hookline/redis: update endpoint url path claim: %w", err)
		}
		if !ok {
			return endpoint.ErrURLPathTaken
		}
		s.rdb.Del(ctx, uniqueEndpointPath+existing.URLPath)
	}

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: update endpoint: %w", err)
	}
	return nil
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	key := entityKey(prefixEndpoint, epID.String())

	var m endpointModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hookline.ErrEndpointNotFound
		}
		return fmt.Errorf("hookline/redis: delete endpoint get: %w", err)
	}

	// Cascade: rules, transformations, events (with their deliveries and
	// attempts), and DLQ entries go with the endpoint.
	ruleIDs, err := s.rdb.ZRange(ctx, zRuleEndpoint+m.ID, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: delete endpoint rules: %w", err)
	}
	tfIDs, err := s.rdb.ZRange(ctx, zTfEndpoint+m.ID, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: delete endpoint transformations: %w", err)
	}
	evtIDs, err := s.rdb.ZRange(ctx, zEventEndpoint+m.ID, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: delete endpoint events: %w", err)
	}
	dlqIDs, err := s.rdb.ZRange(ctx, zDLQEndpoint+m.ID, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: delete endpoint dlq: %w", err)
	}

	for _, evtID := range evtIDs {
		if err := s.cascadeEvent(ctx, evtID, m.ProjectID, m.ID); err != nil {
			return err
		}
	}
	for _, entryID := range dlqIDs {
		if err := s.deleteDLQEntry(ctx, entryID, m.ProjectID, m.ID); err != nil {
			return err
		}
	}

	pipe := s.rdb.Pipeline()
	for _, ruleID := range ruleIDs {
		pipe.Del(ctx, entityKey(prefixRule, ruleID))
	}
	for _, tfID := range tfIDs {
		pipe.Del(ctx, entityKey(prefixTransformation, tfID))
	}
	pipe.Del(ctx, zRuleEndpoint+m.ID)
	pipe.Del(ctx, zTfEndpoint+m.ID)
	pipe.Del(ctx, zEventEndpoint+m.ID)
	pipe.Del(ctx, uniqueEndpointShort+m.ShortURL)
	pipe.Del(ctx, uniqueEndpointPath+m.URLPath)
	pipe.ZRem(ctx, zEndpointProj+m.ProjectID, m.ID)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: delete endpoint: %w", err)
	}
	return nil
}

func (s *Store) ListEndpoints(ctx context.Context, projID id.ID, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	ids, err := s.rdb.ZRange(ctx, zEndpointProj+projID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list endpoints: %w", err)
	}

	result := make([]*endpoint.Endpoint, 0, len(ids))
	for _, entryID := range ids {
		var m endpointModel
		if err := s.getEntity(ctx, entityKey(prefixEndpoint, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Enabled != nil && m.Enabled != *opts.Enabled {
			continue
		}
		ep, err := fromEndpointModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, ep)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SetEndpointEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	key := entityKey(prefixEndpoint, epID.String())

	var m endpointModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hookline.ErrEndpointNotFound
		}
		return fmt.Errorf("hookline/redis: set enabled get: %w", err)
	}

	m.Enabled = enabled
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("hookline/redis: set enabled: %w", err)
	}
	return nil
}

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
	"github.com/hookline/hookline/project"
)

// projectModel is the JSON representation stored in Redis.
type projectModel struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	APIKey        string    `json:"api_key"`
	WebhookSecret string    `json:"webhook_secret"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toProjectModel(p *project.Project) *projectModel {
	return &projectModel{
		ID:            p.ID.String(),
		Name:          p.Name,
		Slug:          p.Slug,
		APIKey:        p.APIKey,
		WebhookSecret: p.WebhookSecret,
		Enabled:       p.Enabled,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func fromProjectModel(m *projectModel) (*project.Project, error) {
	projID, err := id.ParseProjectID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID %q: %w", m.ID, err)
	}
	return &project.Project{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            projID,
		Name:          m.Name,
		Slug:          m.Slug,
		APIKey:        m.APIKey,
		WebhookSecret: m.WebhookSecret,
		Enabled:       m.Enabled,
	}, nil
}

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	m := toProjectModel(p)
	key := entityKey(prefixProject, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: create project: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, uniqueProjectSlug+m.Slug, m.ID, 0)
	pipe.Set(ctx, uniqueProjectAPIKey+m.APIKey, m.ID, 0)
	pipe.ZAdd(ctx, zProjectAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("hookline/redis: create project indexes: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projID id.ID) (*project.Project, error) {
	var m projectModel
	if err := s.getEntity(ctx, entityKey(prefixProject, projID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrProjectNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get project: %w", err)
	}
	return fromProjectModel(&m)
}

func (s *Store) GetProjectByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	projID, err := s.rdb.Get(ctx, uniqueProjectAPIKey+apiKey).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrProjectNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get project by api key: %w", err)
	}

	var m projectModel
	if err := s.getEntity(ctx, entityKey(prefixProject, projID), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrProjectNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get project: %w", err)
	}
	return fromProjectModel(&m)
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*project.Project, error) {
	projID, err := s.rdb.Get(ctx, uniqueProjectSlug+slug).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrProjectNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get project by slug: %w", err)
	}

	var m projectModel
	if err := s.getEntity(ctx, entityKey(prefixProject, projID), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrProjectNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get project: %w", err)
	}
	return fromProjectModel(&m)
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	key := entityKey(prefixProject, p.ID.String())

	var existing projectModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return hookline.ErrProjectNotFound
		}
		return fmt.Errorf("hookline/redis: update project get: %w", err)
	}

	m := toProjectModel(p)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: update project: %w", err)
	}

	// Keep the slug and API key lookups in sync with rotations.
	pipe := s.rdb.Pipeline()
	if existing.Slug != m.Slug {
		pipe.Del(ctx, uniqueProjectSlug+existing.Slug)
		pipe.Set(ctx, uniqueProjectSlug+m.Slug, m.ID, 0)
	}
	if existing.APIKey != m.APIKey {
		pipe.Del(ctx, uniqueProjectAPIKey+existing.APIKey)
		pipe.Set(ctx, uniqueProjectAPIKey+m.APIKey, m.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: update project indexes: %w", err)
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, projID id.ID) error {
	key := entityKey(prefixProject, projID.String())

	var m projectModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hookline.ErrProjectNotFound
		}
		return fmt.Errorf("hookline/redis: delete project get: %w", err)
	}

	eps, err := s.ListEndpoints(ctx, projID, endpoint.ListOpts{})
	if err != nil {
		return err
	}
	for _, ep := range eps {
		if err := s.DeleteEndpoint(ctx, ep.ID); err != nil {
			return err
		}
	}

	// Drop any DLQ entries left for this project.
	dlqIDs, err := s.rdb.ZRange(ctx, zDLQProject+m.ID, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: delete project dlq list: %w", err)
	}
	for _, entryID := range dlqIDs {
		if err := s.deleteDLQEntry(ctx, entryID, m.ID, ""); err != nil {
			return err
		}
	}

	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("hookline/redis: delete project: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, uniqueProjectSlug+m.Slug)
	pipe.Del(ctx, uniqueProjectAPIKey+m.APIKey)
	pipe.ZRem(ctx, zProjectAll, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: delete project indexes: %w", err)
	}
	return nil
}

func (s *Store) ListProjects(ctx context.Context, opts project.ListOpts) ([]*project.Project, error) {
	ids, err := s.rdb.ZRange(ctx, zProjectAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list projects: %w", err)
	}

	result := make([]*project.Project, 0, len(ids))
	for _, entryID := range ids {
		var m projectModel
		if err := s.getEntity(ctx, entityKey(prefixProject, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Enabled != nil && m.Enabled != *opts.Enabled {
			continue
		}
		p, err := fromProjectModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hookline/hookline"
	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/transform"
)

// transformationModel is the JSON representation stored in Redis.
type transformationModel struct {
	ID         string                `json:"id"`
	EndpointID string                `json:"endpoint_id"`
	Name       string                `json:"name"`
	Type       string                `json:"type"`
	Rules      json.RawMessage       `json:"transformation_rules,omitempty"`
	Conditions []condition.Condition `json:"conditions,omitempty"`
	Priority   int                   `json:"priority"`
	Enabled    bool                  `json:"enabled"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func toTransformationModel(t *transform.Transformation) *transformationModel {
	return &transformationModel{
		ID:         t.ID.String(),
		EndpointID: t.EndpointID.String(),
		Name:       t.Name,
		Type:       string(t.Type),
		Rules:      t.Rules,
		Conditions: t.Conditions,
		Priority:   t.Priority,
		Enabled:    t.Enabled,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func fromTransformationModel(m *transformationModel) (*transform.Transformation, error) {
	tfID, err := id.ParseTransformationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse transformation ID %q: %w", m.ID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	return &transform.Transformation{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         tfID,
		EndpointID: epID,
		Name:       m.Name,
		Type:       transform.Type(m.Type),
		Rules:      m.Rules,
		Conditions: m.Conditions,
		Priority:   m.Priority,
		Enabled:    m.Enabled,
	}, nil
}

func (s *Store) CreateTransformation(ctx context.Context, t *transform.Transformation) error {
	m := toTransformationModel(t)
	key := entityKey(prefixTransformation, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: create transformation: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, zTfEndpoint+m.EndpointID, goredis.Z{
		Score:  scoreFromTime(m.CreatedAt),
		Member: m.ID,
	}).Err(); err != nil {
		return fmt.Errorf("hookline/redis: create transformation index: %w", err)
	}
	return nil
}

func (s *Store) GetTransformation(ctx context.Context, tfID id.ID) (*transform.Transformation, error) {
	var m transformationModel
	if err := s.getEntity(ctx, entityKey(prefixTransformation, tfID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrTransformationNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get transformation: %w", err)
	}
	return fromTransformationModel(&m)
}

func (s *Store) UpdateTransformation(ctx context.Context, t *transform.Transformation) error {
	key := entityKey(prefixTransformation, t.ID.String())

	var existing transformationModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return hookline.ErrTransformationNotFound
		}
		return fmt.Errorf("hookline/redis: update transformation get: %w", err)
	}

	m := toTransformationModel(t)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: update transformation: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransformation(ctx context.Context, tfID id.ID) error {
	key := entityKey(prefixTransformation, tfID.String())

	var m transformationModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hookline.ErrTransformationNotFound
		}
		return fmt.Errorf("hookline/redis: delete transformation get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, zTfEndpoint+m.EndpointID, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: delete transformation: %w", err)
	}
	return nil
}

func (s *Store) ListTransformations(ctx context.Context, endpointID id.ID) ([]*transform.Transformation, error) {
	ids, err := s.rdb.ZRange(ctx, zTfEndpoint+endpointID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list transformations: %w", err)
	}

	result := make([]*transform.Transformation, 0, len(ids))
	for _, entryID := range ids {
		var m transformationModel
		if err := s.getEntity(ctx, entityKey(prefixTransformation, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		t, err := fromTransformationModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	// Transformations apply in ascending priority order.
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

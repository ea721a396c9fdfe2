package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hookline/hookline"
	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/routing"
)

// ruleModel is the JSON representation stored in Redis.
type ruleModel struct {
	ID           string                `json:"id"`
	EndpointID   string                `json:"endpoint_id"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Action       string                `json:"action"`
	Priority     int                   `json:"priority"`
	Conditions   []condition.Condition `json:"conditions,omitempty"`
	Destinations []routing.Destination `json:"destinations,omitempty"`
	Enabled      bool                  `json:"enabled"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func toRuleModel(r *routing.Rule) *ruleModel {
	return &ruleModel{
		ID:           r.ID.String(),
		EndpointID:   r.EndpointID.String(),
		Name:         r.Name,
		Description:  r.Description,
		Action:       string(r.Action),
		Priority:     r.Priority,
		Conditions:   r.Conditions,
		Destinations: r.Destinations,
		Enabled:      r.Enabled,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromRuleModel(m *ruleModel) (*routing.Rule, error) {
	ruleID, err := id.ParseRuleID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse rule ID %q: %w", m.ID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	return &routing.Rule{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           ruleID,
		EndpointID:   epID,
		Name:         m.Name,
		Description:  m.Description,
		Action:       routing.Action(m.Action),
		Priority:     m.Priority,
		Conditions:   m.Conditions,
		Destinations: m.Destinations,
		Enabled:      m.Enabled,
	}, nil
}

func (s *Store) CreateRule(ctx context.Context, r *routing.Rule) error {
	m := toRuleModel(r)
	key := entityKey(prefixRule, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: create rule: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, zRuleEndpoint+m.EndpointID, goredis.Z{
		Score:  scoreFromTime(m.CreatedAt),
		Member: m.ID,
	}).Err(); err != nil {
		return fmt.Errorf("hookline/redis: create rule index: %w", err)
	}
	return nil
}

func (s *Store) GetRule(ctx context.Context, ruleID id.ID) (*routing.Rule, error) {
	var m ruleModel
	if err := s.getEntity(ctx, entityKey(prefixRule, ruleID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrRuleNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get rule: %w", err)
	}
	return fromRuleModel(&m)
}

func (s *Store) UpdateRule(ctx context.Context, r *routing.Rule) error {
	key := entityKey(prefixRule, r.ID.String())

	var existing ruleModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return hookline.ErrRuleNotFound
		}
		return fmt.Errorf("hookline/redis: update rule get: %w", err)
	}

	m := toRuleModel(r)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: update rule: %w", err)
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, ruleID id.ID) error {
	key := entityKey(prefixRule, ruleID.String())

	var m ruleModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hookline.ErrRuleNotFound
		}
		return fmt.Errorf("hookline/redis: delete rule get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, zRuleEndpoint+m.EndpointID, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: delete rule: %w", err)
	}
	return nil
}

func (s *Store) ListRules(ctx context.Context, epID id.ID) ([]*routing.Rule, error) {
	ids, err := s.rdb.ZRange(ctx, zRuleEndpoint+epID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list rules: %w", err)
	}

	result := make([]*routing.Rule, 0, len(ids))
	for _, entryID := range ids {
		var m ruleModel
		if err := s.getEntity(ctx, entityKey(prefixRule, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		r, err := fromRuleModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	// First-match-wins routing depends on a stable priority order.
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

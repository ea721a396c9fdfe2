package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hookline/hookline"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// dlqEntryModel is the JSON representation stored in Redis.
type dlqEntryModel struct {
	ID             string          `json:"id"`
	DeliveryID     string          `json:"delivery_id"`
	EventID        string          `json:"event_id"`
	EndpointID     string          `json:"endpoint_id"`
	ProjectID      string          `json:"project_id"`
	EventType      string          `json:"event_type,omitempty"`
	DestinationURL string          `json:"destination_url"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Error          string          `json:"error"`
	AttemptCount   int             `json:"attempt_count"`
	LastStatusCode int             `json:"last_status_code,omitempty"`
	ReplayedAt     *time.Time      `json:"replayed_at,omitempty"`
	FailedAt       time.Time       `json:"failed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		EventID:        e.EventID.String(),
		EndpointID:     e.EndpointID.String(),
		ProjectID:      e.ProjectID.String(),
		EventType:      e.EventType,
		DestinationURL: e.DestinationURL,
		Payload:        e.Payload,
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	projID, err := id.ParseProjectID(m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID %q: %w", m.ProjectID, err)
	}
	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dlqID,
		DeliveryID:     delID,
		EventID:        evtID,
		EndpointID:     epID,
		ProjectID:      projID,
		EventType:      m.EventType,
		DestinationURL: m.DestinationURL,
		Payload:        m.Payload,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}

func (s *Store) Push(ctx context.Context, e *dlq.Entry) error {
	m := toDLQEntryModel(e)
	key := entityKey(prefixDLQ, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: push DLQ entry: %w", err)
	}

	score := scoreFromTime(m.FailedAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zDLQAll, goredis.Z{Score: score, Member: m.ID})
	pipe.ZAdd(ctx, zDLQProject+m.ProjectID, goredis.Z{Score: score, Member: m.ID})
	pipe.ZAdd(ctx, zDLQEndpoint+m.EndpointID, goredis.Z{Score: score, Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: push DLQ indexes: %w", err)
	}
	return nil
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	// Pick the narrowest index for the filter.
	key := zDLQAll
	if opts.EndpointID != nil && !opts.EndpointID.IsNil() {
		key = zDLQEndpoint + opts.EndpointID.String()
	} else if !opts.ProjectID.IsNil() {
		key = zDLQProject + opts.ProjectID.String()
	}

	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, key, minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list DLQ: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m dlqEntryModel
		if err := s.getEntity(ctx, entityKey(prefixDLQ, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.EndpointID != nil && !opts.EndpointID.IsNil() && !opts.ProjectID.IsNil() &&
			m.ProjectID != opts.ProjectID.String() {
			continue
		}
		e, err := fromDLQEntryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqEntryModel
	if err := s.getEntity(ctx, entityKey(prefixDLQ, dlqID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrDLQNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get DLQ entry: %w", err)
	}
	return fromDLQEntryModel(&m)
}

func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	key := entityKey(prefixDLQ, dlqID.String())

	var m dlqEntryModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hookline.ErrDLQNotFound
		}
		return fmt.Errorf("hookline/redis: replay get: %w", err)
	}

	t := now()
	if err := s.replayEntry(ctx, &m, t); err != nil {
		return err
	}

	// The entry stays in the DLQ as a record of the failure; replayed_at
	// marks it handled.
	m.ReplayedAt = &t
	m.UpdatedAt = t
	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("hookline/redis: replay mark: %w", err)
	}
	return nil
}

// replayEntry resets the entry's delivery in place, or recreates it when the
// original row is gone.
func (s *Store) replayEntry(ctx context.Context, m *dlqEntryModel, t time.Time) error {
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}

	d, err := s.GetDelivery(ctx, delID)
	if err == nil {
		d.State = delivery.StatePending
		d.AttemptCount = 0
		d.NextAttemptAt = t
		d.CompletedAt = nil
		return s.UpdateDelivery(ctx, d)
	}
	if !errors.Is(err, hookline.ErrDeliveryNotFound) {
		return err
	}

	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}

	fresh := &delivery.Delivery{
		Entity:         hookline.NewEntity(),
		ID:             id.NewDeliveryID(),
		EventID:        evtID,
		EndpointID:     epID,
		DestinationURL: m.DestinationURL,
		Payload:        m.Payload,
		State:          delivery.StatePending,
		MaxAttempts:    m.AttemptCount,
		NextAttemptAt:  t,
	}
	if fresh.MaxAttempts <= 0 {
		fresh.MaxAttempts = endpoint.DefaultRetryConfig().MaxAttempts
	}
	return s.Enqueue(ctx, fresh)
}

func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, scoreFromTime(from), scoreFromTime(to))
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: replay bulk list: %w", err)
	}

	t := now()
	var count int64
	for _, entryID := range ids {
		key := entityKey(prefixDLQ, entryID)
		var m dlqEntryModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return count, err
		}
		if m.ReplayedAt != nil {
			continue
		}

		if err := s.replayEntry(ctx, &m, t); err != nil {
			return count, err
		}
		m.ReplayedAt = &t
		m.UpdatedAt = t
		if err := s.setEntity(ctx, key, &m); err != nil {
			return count, fmt.Errorf("hookline/redis: replay bulk mark: %w", err)
		}
		count++
	}
	return count, nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, math.Inf(-1), scoreFromTime(before))
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: purge list: %w", err)
	}

	var count int64
	for _, entryID := range ids {
		var m dlqEntryModel
		if err := s.getEntity(ctx, entityKey(prefixDLQ, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return count, err
		}
		if !m.FailedAt.Before(before) {
			continue
		}
		if err := s.deleteDLQEntry(ctx, entryID, m.ProjectID, m.EndpointID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDLQAll).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: count DLQ: %w", err)
	}
	return count, nil
}

// deleteDLQEntry removes a DLQ entry and all its index memberships.
func (s *Store) deleteDLQEntry(ctx context.Context, entryID, projectID, endpointID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, entityKey(prefixDLQ, entryID))
	pipe.ZRem(ctx, zDLQAll, entryID)
	if projectID != "" {
		pipe.ZRem(ctx, zDLQProject+projectID, entryID)
	}
	if endpointID != "" {
		pipe.ZRem(ctx, zDLQEndpoint+endpointID, entryID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: delete DLQ entry: %w", err)
	}
	return nil
}

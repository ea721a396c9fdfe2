package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hookline/hookline"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// eventModel is the JSON representation stored in Redis.
type eventModel struct {
	ID            string            `json:"id"`
	ProjectID     string            `json:"project_id"`
	EndpointID    string            `json:"endpoint_id"`
	EventType     string            `json:"event_type,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	SourceIP      string            `json:"source_ip,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	Status        string            `json:"status"`
	AttemptCount  int               `json:"attempt_count"`
	ReplayCount   int               `json:"replay_count"`
	ReplayOf      string            `json:"replay_of,omitempty"`
	LastAttemptAt *time.Time        `json:"last_attempt_at,omitempty"`
	DeliveredAt   *time.Time        `json:"delivered_at,omitempty"`
	FailedAt      *time.Time        `json:"failed_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	replayOf := ""
	if !evt.ReplayOf.IsNil() {
		replayOf = evt.ReplayOf.String()
	}
	return &eventModel{
		ID:            evt.ID.String(),
		ProjectID:     evt.ProjectID.String(),
		EndpointID:    evt.EndpointID.String(),
		EventType:     evt.EventType,
		Payload:       evt.Payload,
		Headers:       evt.Headers,
		SourceIP:      evt.SourceIP,
		UserAgent:     evt.UserAgent,
		Status:        string(evt.Status),
		AttemptCount:  evt.AttemptCount,
		ReplayCount:   evt.ReplayCount,
		ReplayOf:      replayOf,
		LastAttemptAt: evt.LastAttemptAt,
		DeliveredAt:   evt.DeliveredAt,
		FailedAt:      evt.FailedAt,
		CreatedAt:     evt.CreatedAt,
		UpdatedAt:     evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	projID, err := id.ParseProjectID(m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID %q: %w", m.ProjectID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	replayOf := id.Nil
	if m.ReplayOf != "" {
		replayOf, err = id.ParseEventID(m.ReplayOf)
		if err != nil {
			return nil, fmt.Errorf("parse replay-of ID %q: %w", m.ReplayOf, err)
		}
	}
	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            evtID,
		ProjectID:     projID,
		EndpointID:    epID,
		EventType:     m.EventType,
		Payload:       m.Payload,
		Headers:       m.Headers,
		SourceIP:      m.SourceIP,
		UserAgent:     m.UserAgent,
		Status:        event.Status(m.Status),
		AttemptCount:  m.AttemptCount,
		ReplayCount:   m.ReplayCount,
		ReplayOf:      replayOf,
		LastAttemptAt: m.LastAttemptAt,
		DeliveredAt:   m.DeliveredAt,
		FailedAt:      m.FailedAt,
	}, nil
}

// claimScript atomically claims pending event IDs from the sorted set.
// KEYS[1] = hookline:z:evt:pending
// ARGV[1] = limit
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, tonumber(ARGV[1]) - 1)
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	key := entityKey(prefixEvent, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: create event: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zEventProj+m.ProjectID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	pipe.ZAdd(ctx, zEventEndpoint+m.EndpointID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.Status == string(event.StatusPending) {
		pipe.ZAdd(ctx, zEventPending, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("hookline/redis: create event indexes: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var m eventModel
	if err := s.getEntity(ctx, entityKey(prefixEvent, evtID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, hookline.ErrEventNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get event: %w", err)
	}
	return fromEventModel(&m)
}

func (s *Store) ListEvents(ctx context.Context, projectID id.ID, opts event.ListOpts) ([]*event.Event, error) {
	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, zEventProj+projectID.String(), minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m eventModel
		if err := s.getEntity(ctx, entityKey(prefixEvent, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Status != "" && m.Status != string(opts.Status) {
			continue
		}
		if !opts.EndpointID.IsNil() && m.EndpointID != opts.EndpointID.String() {
			continue
		}
		if opts.EventType != "" && m.EventType != opts.EventType {
			continue
		}
		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) DequeuePendingEvents(ctx context.Context, limit int) ([]*event.Event, error) {
	// Atomically claim pending event IDs using the Lua script.
	result, err := claimScript.Run(ctx, s.rdb, []string{zEventPending}, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("hookline/redis: claim events script: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	events := make([]*event.Event, 0, len(result))
	for _, entryID := range result {
		key := entityKey(prefixEvent, entryID)
		var m eventModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("hookline/redis: claim event get: %w", err)
		}

		m.Status = string(event.StatusProcessing)
		m.UpdatedAt = now()
		if err := s.setEntity(ctx, key, &m); err != nil {
			return nil, fmt.Errorf("hookline/redis: claim event update: %w", err)
		}

		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}

	return events, nil
}

func (s *Store) UpdateEvent(ctx context.Context, evt *event.Event) error {
	key := entityKey(prefixEvent, evt.ID.String())

	var existing eventModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return hookline.ErrEventNotFound
		}
		return fmt.Errorf("hookline/redis: update event get: %w", err)
	}

	m := toEventModel(evt)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("hookline/redis: update event: %w", err)
	}

	// Keep the pending claim set in sync with the lifecycle state.
	if m.Status == string(event.StatusPending) {
		s.rdb.ZAdd(ctx, zEventPending, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	} else {
		s.rdb.ZRem(ctx, zEventPending, m.ID)
	}
	return nil
}

func (s *Store) TouchEventAttempt(ctx context.Context, evtID id.ID, attemptCount int) error {
	key := entityKey(prefixEvent, evtID.String())

	var m eventModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return hookline.ErrEventNotFound
		}
		return fmt.Errorf("hookline/redis: touch event get: %w", err)
	}

	t := now()
	if attemptCount > m.AttemptCount {
		m.AttemptCount = attemptCount
	}
	m.LastAttemptAt = &t
	m.UpdatedAt = t

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("hookline/redis: touch event: %w", err)
	}
	return nil
}

// cascadeEvent removes an event with its deliveries and attempt history.
// Used by endpoint and project deletes; standalone replay keeps attempts.
func (s *Store) cascadeEvent(ctx context.Context, evtID, projectID, endpointID string) error {
	delIDs, err := s.rdb.ZRange(ctx, zDeliveryEvt+evtID, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: cascade event deliveries: %w", err)
	}
	attIDs, err := s.rdb.ZRange(ctx, zAttemptEvt+evtID, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: cascade event attempts: %w", err)
	}

	pipe := s.rdb.Pipeline()
	for _, delID := range delIDs {
		pipe.Del(ctx, entityKey(prefixDelivery, delID))
		pipe.ZRem(ctx, zDeliveryPend, delID)
	}
	for _, attID := range attIDs {
		pipe.Del(ctx, entityKey(prefixAttempt, attID))
	}
	pipe.Del(ctx, zDeliveryEvt+evtID)
	pipe.Del(ctx, zAttemptEvt+evtID)
	pipe.Del(ctx, entityKey(prefixEvent, evtID))
	pipe.ZRem(ctx, zEventPending, evtID)
	pipe.ZRem(ctx, zEventProj+projectID, evtID)
	pipe.ZRem(ctx, zEventEndpoint+endpointID, evtID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: cascade event: %w", err)
	}
	return nil
}

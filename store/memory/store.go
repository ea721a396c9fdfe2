// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/routing"
	hlstore "github.com/hookline/hookline/store"
	"github.com/hookline/hookline/transform"
)

// compile-time interface check.
var _ hlstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	projects        map[string]*project.Project
	endpoints       map[string]*endpoint.Endpoint
	rules           map[string]*routing.Rule
	transformations map[string]*transform.Transformation
	events          map[string]*event.Event
	deliveries      map[string]*delivery.Delivery
	attempts        []*delivery.Attempt
	dlqEntries      map[string]*dlq.Entry
	locked          map[string]time.Time // delivery claim times, simulates SKIP LOCKED

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		projects:        make(map[string]*project.Project),
		endpoints:       make(map[string]*endpoint.Endpoint),
		rules:           make(map[string]*routing.Rule),
		transformations: make(map[string]*transform.Transformation),
		events:          make(map[string]*event.Event),
		deliveries:      make(map[string]*delivery.Delivery),
		dlqEntries:      make(map[string]*dlq.Entry),
		locked:          make(map[string]time.Time),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// project.Store
// ──────────────────────────────────────────────────

// CreateProject persists a new project.
func (s *Store) CreateProject(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[p.ID.String()] = p
	return nil
}

// GetProject returns a project by ID.
func (s *Store) GetProject(_ context.Context, projID id.ID) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projID.String()]
	if !ok {
		return nil, hookline.ErrProjectNotFound
	}
	return p, nil
}

// GetProjectByAPIKey returns the project owning the given API key.
func (s *Store) GetProjectByAPIKey(_ context.Context, apiKey string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.APIKey == apiKey {
			return p, nil
		}
	}
	return nil, hookline.ErrProjectNotFound
}

// GetProjectBySlug returns a project by its slug.
func (s *Store) GetProjectBySlug(_ context.Context, slug string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, hookline.ErrProjectNotFound
}

// UpdateProject modifies an existing project.
func (s *Store) UpdateProject(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[p.ID.String()]; !ok {
		return hookline.ErrProjectNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	s.projects[p.ID.String()] = p
	return nil
}

// DeleteProject removes a project and cascades to everything it owns.
func (s *Store) DeleteProject(_ context.Context, projID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projID.String()]; !ok {
		return hookline.ErrProjectNotFound
	}
	delete(s.projects, projID.String())

	for epKey, ep := range s.endpoints {
		if ep.ProjectID.String() == projID.String() {
			delete(s.endpoints, epKey)
			s.cascadeEndpoint(ep.ID)
		}
	}
	return nil
}

// ListProjects returns projects, optionally filtered.
func (s *Store) ListProjects(_ context.Context, opts project.ListOpts) ([]*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*project.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if opts.Enabled != nil && p.Enabled != *opts.Enabled {
			continue
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

// CreateEndpoint persists a new endpoint, enforcing short_url and url_path
// uniqueness.
func (s *Store) CreateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.endpoints {
		if existing.ShortURL == ep.ShortURL {
			return endpoint.ErrShortURLTaken
		}
		if existing.URLPath == ep.URLPath {
			return endpoint.ErrURLPathTaken
		}
	}

	s.endpoints[ep.ID.String()] = copyEndpoint(ep)
	return nil
}

// GetEndpoint returns a copy of the endpoint by ID.
func (s *Store) GetEndpoint(_ context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return nil, hookline.ErrEndpointNotFound
	}
	return copyEndpoint(ep), nil
}

// GetEndpointByURLPath returns the endpoint registered at the given path.
func (s *Store) GetEndpointByURLPath(_ context.Context, urlPath string) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ep := range s.endpoints {
		if ep.URLPath == urlPath {
			return copyEndpoint(ep), nil
		}
	}
	return nil, hookline.ErrEndpointNotFound
}

// GetEndpointByShortURL returns the endpoint behind an 8-character alias.
func (s *Store) GetEndpointByShortURL(_ context.Context, shortURL string) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ep := range s.endpoints {
		if ep.ShortURL == shortURL {
			return copyEndpoint(ep), nil
		}
	}
	return nil, hookline.ErrEndpointNotFound
}

// UpdateEndpoint modifies an existing endpoint, re-checking url_path and
// short_url uniqueness against every other endpoint.
func (s *Store) UpdateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[ep.ID.String()]; !ok {
		return hookline.ErrEndpointNotFound
	}
	for key, existing := range s.endpoints {
		if key == ep.ID.String() {
			continue
		}
		if existing.ShortURL == ep.ShortURL {
			return endpoint.ErrShortURLTaken
		}
		if existing.URLPath == ep.URLPath {
			return endpoint.ErrURLPathTaken
		}
	}
	ep.UpdatedAt = time.Now().UTC()
	s.endpoints[ep.ID.String()] = copyEndpoint(ep)
	return nil
}

// DeleteEndpoint removes an endpoint and cascades to its rules,
// transformations, events, deliveries, and attempts.
func (s *Store) DeleteEndpoint(_ context.Context, epID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[epID.String()]; !ok {
		return hookline.ErrEndpointNotFound
	}
	delete(s.endpoints, epID.String())
	s.cascadeEndpoint(epID)
	return nil
}

// cascadeEndpoint removes everything owned by an endpoint. Caller holds the
// write lock.
func (s *Store) cascadeEndpoint(epID id.ID) {
	for k, r := range s.rules {
		if r.EndpointID.String() == epID.String() {
			delete(s.rules, k)
		}
	}
	for k, t := range s.transformations {
		if t.EndpointID.String() == epID.String() {
			delete(s.transformations, k)
		}
	}
	for k, evt := range s.events {
		if evt.EndpointID.String() == epID.String() {
			delete(s.events, k)
			s.cascadeEvent(evt.ID)
		}
	}
}

// cascadeEvent removes an event's deliveries, attempts, and DLQ entries.
// Caller holds the write lock.
func (s *Store) cascadeEvent(evtID id.ID) {
	for k, d := range s.deliveries {
		if d.EventID.String() == evtID.String() {
			delete(s.deliveries, k)
			delete(s.locked, k)
		}
	}
	kept := s.attempts[:0]
	for _, a := range s.attempts {
		if a.EventID.String() != evtID.String() {
			kept = append(kept, a)
		}
	}
	s.attempts = kept

	for k, e := range s.dlqEntries {
		if e.EventID.String() == evtID.String() {
			delete(s.dlqEntries, k)
		}
	}
}

// ListEndpoints returns endpoints for a project, optionally filtered.
func (s *Store) ListEndpoints(_ context.Context, projID id.ID, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*endpoint.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if ep.ProjectID.String() != projID.String() {
			continue
		}
		if opts.Enabled != nil && ep.Enabled != *opts.Enabled {
			continue
		}
		result = append(result, copyEndpoint(ep))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// SetEndpointEnabled enables or disables an endpoint.
func (s *Store) SetEndpointEnabled(_ context.Context, epID id.ID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return hookline.ErrEndpointNotFound
	}
	ep.Enabled = enabled
	ep.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// routing.Store
// ──────────────────────────────────────────────────

// CreateRule persists a new routing rule.
func (s *Store) CreateRule(_ context.Context, r *routing.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[r.ID.String()] = r
	return nil
}

// GetRule returns a rule by ID.
func (s *Store) GetRule(_ context.Context, ruleID id.ID) (*routing.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[ruleID.String()]
	if !ok {
		return nil, hookline.ErrRuleNotFound
	}
	return r, nil
}

// UpdateRule modifies an existing rule.
func (s *Store) UpdateRule(_ context.Context, r *routing.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[r.ID.String()]; !ok {
		return hookline.ErrRuleNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	s.rules[r.ID.String()] = r
	return nil
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(_ context.Context, ruleID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[ruleID.String()]; !ok {
		return hookline.ErrRuleNotFound
	}
	delete(s.rules, ruleID.String())
	return nil
}

// ListRules returns an endpoint's rules ordered by ascending priority.
func (s *Store) ListRules(_ context.Context, epID id.ID) ([]*routing.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*routing.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.EndpointID.String() == epID.String() {
			result = append(result, r)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// transform.Store
// ──────────────────────────────────────────────────

// CreateTransformation persists a new transformation.
func (s *Store) CreateTransformation(_ context.Context, t *transform.Transformation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transformations[t.ID.String()] = t
	return nil
}

// GetTransformation returns a transformation by ID.
func (s *Store) GetTransformation(_ context.Context, tfID id.ID) (*transform.Transformation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transformations[tfID.String()]
	if !ok {
		return nil, hookline.ErrTransformationNotFound
	}
	return t, nil
}

// UpdateTransformation modifies an existing transformation.
func (s *Store) UpdateTransformation(_ context.Context, t *transform.Transformation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transformations[t.ID.String()]; !ok {
		return hookline.ErrTransformationNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	s.transformations[t.ID.String()] = t
	return nil
}

// DeleteTransformation removes a transformation.
func (s *Store) DeleteTransformation(_ context.Context, tfID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transformations[tfID.String()]; !ok {
		return hookline.ErrTransformationNotFound
	}
	delete(s.transformations, tfID.String())
	return nil
}

// ListTransformations returns an endpoint's transformations ordered by
// ascending priority.
func (s *Store) ListTransformations(_ context.Context, epID id.ID) ([]*transform.Transformation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transform.Transformation, 0, len(s.transformations))
	for _, t := range s.transformations {
		if t.EndpointID.String() == epID.String() {
			result = append(result, t)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists an event.
func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[evt.ID.String()] = evt
	return nil
}

// GetEvent returns a copy of the event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, hookline.ErrEventNotFound
	}
	return copyEvent(evt), nil
}

// ListEvents returns a project's events, newest first.
func (s *Store) ListEvents(_ context.Context, projID id.ID, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if evt.ProjectID.String() != projID.String() {
			continue
		}
		if !matchEventOpts(evt, opts) {
			continue
		}
		result = append(result, copyEvent(evt))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// DequeuePendingEvents atomically claims pending events and marks them
// processing.
func (s *Store) DequeuePendingEvents(_ context.Context, limit int) ([]*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if evt.Status == event.StatusPending {
			candidates = append(candidates, evt)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*event.Event, 0, len(candidates))
	for _, evt := range candidates {
		evt.Status = event.StatusProcessing
		evt.UpdatedAt = time.Now().UTC()
		result = append(result, copyEvent(evt))
	}
	return result, nil
}

// UpdateEvent persists lifecycle changes to an event.
func (s *Store) UpdateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[evt.ID.String()]; !ok {
		return hookline.ErrEventNotFound
	}
	evt.UpdatedAt = time.Now().UTC()
	s.events[evt.ID.String()] = copyEvent(evt)
	return nil
}

// TouchEventAttempt records delivery progress with max() semantics.
func (s *Store) TouchEventAttempt(_ context.Context, evtID id.ID, attemptCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return hookline.ErrEventNotFound
	}
	if attemptCount > evt.AttemptCount {
		evt.AttemptCount = attemptCount
	}
	now := time.Now().UTC()
	evt.LastAttemptAt = &now
	evt.UpdatedAt = now
	return nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// Enqueue creates a pending delivery.
func (s *Store) Enqueue(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = d
	return nil
}

// EnqueueBatch creates multiple deliveries atomically.
func (s *Store) EnqueueBatch(_ context.Context, ds []*delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range ds {
		s.deliveries[d.ID.String()] = d
	}
	return nil
}

// copyDelivery returns a shallow copy of the delivery.
func copyDelivery(d *delivery.Delivery) *delivery.Delivery {
	cp := *d
	return &cp
}

// copyEvent returns a shallow copy of the event.
func copyEvent(evt *event.Event) *event.Event {
	cp := *evt
	return &cp
}

// copyEndpoint returns a shallow copy of the endpoint.
func copyEndpoint(ep *endpoint.Endpoint) *endpoint.Endpoint {
	cp := *ep
	return &cp
}

// claimTimeout is how long a dequeued delivery stays claimed before the
// queue hands it out again.
const claimTimeout = 5 * time.Minute

// Dequeue fetches due pending deliveries (concurrent-safe). Returns copies
// so callers can mutate without holding a lock.
func (s *Store) Dequeue(_ context.Context, limit int) ([]*delivery.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	candidates := make([]*delivery.Delivery, 0, len(s.deliveries))

	for _, d := range s.deliveries {
		if d.State != delivery.StatePending {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		// Claims from a stalled worker expire and go back on the queue.
		if at, ok := s.locked[d.ID.String()]; ok && now.Sub(at) < claimTimeout {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Delivery, 0, len(candidates))
	for _, d := range candidates {
		s.locked[d.ID.String()] = now
		result = append(result, copyDelivery(d))
	}

	return result, nil
}

// UpdateDelivery modifies a delivery and releases its lock.
func (s *Store) UpdateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return hookline.ErrDeliveryNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	s.deliveries[d.ID.String()] = copyDelivery(d)
	delete(s.locked, d.ID.String())
	return nil
}

// GetDelivery returns a copy of the delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, hookline.ErrDeliveryNotFound
	}
	return copyDelivery(d), nil
}

// ListByEvent returns all deliveries for a specific event.
func (s *Store) ListByEvent(_ context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if d.EventID.String() == evtID.String() {
			result = append(result, copyDelivery(d))
		}
	}
	return result, nil
}

// DeleteByEvent removes an event's delivery queue units. Attempt history
// is preserved.
func (s *Store) DeleteByEvent(_ context.Context, evtID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, d := range s.deliveries {
		if d.EventID.String() == evtID.String() {
			delete(s.deliveries, k)
			delete(s.locked, k)
		}
	}
	return nil
}

// CountPending returns the number of deliveries awaiting attempt.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, d := range s.deliveries {
		if d.State == delivery.StatePending {
			count++
		}
	}
	return count, nil
}

// AppendAttempt records one attempt.
func (s *Store) AppendAttempt(_ context.Context, a *delivery.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = append(s.attempts, a)
	return nil
}

// ListAttempts returns an event's attempt history, oldest first.
func (s *Store) ListAttempts(_ context.Context, evtID id.ID) ([]*delivery.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*delivery.Attempt
	for _, a := range s.attempts {
		if a.EventID.String() == evtID.String() {
			result = append(result, a)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push moves a permanently failed delivery into the DLQ.
func (s *Store) Push(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqEntries[entry.ID.String()] = entry
	return nil
}

// ListDLQ returns DLQ entries, optionally filtered.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if !opts.ProjectID.IsNil() && e.ProjectID.String() != opts.ProjectID.String() {
			continue
		}
		if opts.EndpointID != nil && e.EndpointID.String() != opts.EndpointID.String() {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, hookline.ErrDLQNotFound
	}
	return e, nil
}

// Replay marks a DLQ entry replayed and resets its delivery for another
// attempt cycle.
func (s *Store) Replay(_ context.Context, dlqID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return hookline.ErrDLQNotFound
	}

	now := time.Now().UTC()
	e.ReplayedAt = &now
	s.replayEntry(e, now)
	return nil
}

// replayEntry resets the entry's delivery in place, or recreates it when the
// original row is gone. Caller holds the write lock.
func (s *Store) replayEntry(e *dlq.Entry, now time.Time) {
	if d, ok := s.deliveries[e.DeliveryID.String()]; ok {
		d.State = delivery.StatePending
		d.AttemptCount = 0
		d.NextAttemptAt = now
		d.CompletedAt = nil
		d.UpdatedAt = now
		return
	}

	d := &delivery.Delivery{
		Entity:         hookline.NewEntity(),
		ID:             id.NewDeliveryID(),
		EventID:        e.EventID,
		EndpointID:     e.EndpointID,
		DestinationURL: e.DestinationURL,
		Payload:        e.Payload,
		State:          delivery.StatePending,
		MaxAttempts:    e.AttemptCount,
		NextAttemptAt:  now,
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = endpoint.DefaultRetryConfig().MaxAttempts
	}
	s.deliveries[d.ID.String()] = d
}

// ReplayBulk replays all DLQ entries in a time window.
func (s *Store) ReplayBulk(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var count int64

	for _, e := range s.dlqEntries {
		if e.FailedAt.Before(from) || e.FailedAt.After(to) {
			continue
		}
		if e.ReplayedAt != nil {
			continue
		}

		e.ReplayedAt = &now
		s.replayEntry(e, now)
		count++
	}
	return count, nil
}

// Purge deletes DLQ entries older than a threshold.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, e := range s.dlqEntries {
		if e.CreatedAt.Before(before) {
			delete(s.dlqEntries, k)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.dlqEntries)), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func matchEventOpts(evt *event.Event, opts event.ListOpts) bool {
	if opts.Status != "" && evt.Status != opts.Status {
		return false
	}
	if !opts.EndpointID.IsNil() && evt.EndpointID.String() != opts.EndpointID.String() {
		return false
	}
	if opts.EventType != "" && evt.EventType != opts.EventType {
		return false
	}
	if opts.From != nil && evt.CreatedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && evt.CreatedAt.After(*opts.To) {
		return false
	}
	return true
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}

// Package postgres implements the Hookline store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	hookline "github.com/hookline/hookline"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/routing"
	hooklinestore "github.com/hookline/hookline/store"
	"github.com/hookline/hookline/transform"
)

// compile-time interface check
var _ hooklinestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("hookline/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("hookline/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Project Store ====================

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	m := toProjectModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetProject(ctx context.Context, projID id.ID) (*project.Project, error) {
	m := new(projectModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", projID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrProjectNotFound
		}
		return nil, err
	}
	return fromProjectModel(m)
}

func (s *Store) GetProjectByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	m := new(projectModel)
	err := s.pg.NewSelect(m).
		Where("api_key = ?", apiKey).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrProjectNotFound
		}
		return nil, err
	}
	return fromProjectModel(m)
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*project.Project, error) {
	m := new(projectModel)
	err := s.pg.NewSelect(m).
		Where("slug = ?", slug).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrProjectNotFound
		}
		return nil, err
	}
	return fromProjectModel(m)
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	m := toProjectModel(p)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrProjectNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, projID id.ID) error {
	eps, err := s.ListEndpoints(ctx, projID, endpoint.ListOpts{})
	if err != nil {
		return err
	}
	for _, ep := range eps {
		if err := s.DeleteEndpoint(ctx, ep.ID); err != nil {
			return err
		}
	}

	if _, err := s.pg.NewDelete((*dlqModel)(nil)).
		Where("project_id = ?", projID.String()).
		Exec(ctx); err != nil {
		return err
	}

	res, err := s.pg.NewDelete((*projectModel)(nil)).
		Where("id = ?", projID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrProjectNotFound
	}
	return nil
}

func (s *Store) ListProjects(ctx context.Context, opts project.ListOpts) ([]*project.Project, error) {
	var models []projectModel
	q := s.pg.NewSelect(&models)

	if opts.Enabled != nil {
		q = q.Where("enabled = ?", *opts.Enabled)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*project.Project, len(models))
	for i := range models {
		p, err := fromProjectModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Endpoint Store ====================

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil {
		return endpointUniqueErr(err)
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", epID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

func (s *Store) GetEndpointByURLPath(ctx context.Context, urlPath string) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.pg.NewSelect(m).
		Where("url_path = ?", urlPath).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

func (s *Store) GetEndpointByShortURL(ctx context.Context, shortURL string) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.pg.NewSelect(m).
		Where("short_url = ?", shortURL).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return endpointUniqueErr(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	epStr := epID.String()

	if _, err := s.pg.NewDelete((*ruleModel)(nil)).
		Where("endpoint_id = ?", epStr).
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.pg.NewDelete((*transformationModel)(nil)).
		Where("endpoint_id = ?", epStr).
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.pg.NewDelete((*attemptModel)(nil)).
		Where("event_id IN (SELECT id FROM hookline_events WHERE endpoint_id = ?)", epStr).
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.pg.NewDelete((*deliveryModel)(nil)).
		Where("endpoint_id = ?", epStr).
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.pg.NewDelete((*dlqModel)(nil)).
		Where("endpoint_id = ?", epStr).
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.pg.NewDelete((*eventModel)(nil)).
		Where("endpoint_id = ?", epStr).
		Exec(ctx); err != nil {
		return err
	}

	res, err := s.pg.NewDelete((*endpointModel)(nil)).
		Where("id = ?", epStr).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}

func (s *Store) ListEndpoints(ctx context.Context, projID id.ID, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	q := s.pg.NewSelect(&models).Where("project_id = ?", projID.String())

	if opts.Enabled != nil {
		q = q.Where("enabled = ?", *opts.Enabled)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*endpoint.Endpoint, len(models))
	for i := range models {
		ep, err := fromEndpointModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = ep
	}
	return result, nil
}

func (s *Store) SetEndpointEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	t := now()
	res, err := s.pg.NewUpdate((*endpointModel)(nil)).
		Set("enabled = ?", enabled).
		Set("updated_at = ?", t).
		Where("id = ?", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}

// ==================== Routing Rule Store ====================

func (s *Store) CreateRule(ctx context.Context, r *routing.Rule) error {
	m := toRuleModel(r)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetRule(ctx context.Context, ruleID id.ID) (*routing.Rule, error) {
	m := new(ruleModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", ruleID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrRuleNotFound
		}
		return nil, err
	}
	return fromRuleModel(m)
}

func (s *Store) UpdateRule(ctx context.Context, r *routing.Rule) error {
	m := toRuleModel(r)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrRuleNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, ruleID id.ID) error {
	res, err := s.pg.NewDelete((*ruleModel)(nil)).
		Where("id = ?", ruleID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrRuleNotFound
	}
	return nil
}

func (s *Store) ListRules(ctx context.Context, epID id.ID) ([]*routing.Rule, error) {
	var models []ruleModel
	if err := s.pg.NewSelect(&models).
		Where("endpoint_id = ?", epID.String()).
		OrderExpr("priority ASC, created_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*routing.Rule, len(models))
	for i := range models {
		r, err := fromRuleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Transformation Store ====================

func (s *Store) CreateTransformation(ctx context.Context, t *transform.Transformation) error {
	m := toTransformationModel(t)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetTransformation(ctx context.Context, tfID id.ID) (*transform.Transformation, error) {
	m := new(transformationModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", tfID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrTransformationNotFound
		}
		return nil, err
	}
	return fromTransformationModel(m)
}

func (s *Store) UpdateTransformation(ctx context.Context, t *transform.Transformation) error {
	m := toTransformationModel(t)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrTransformationNotFound
	}
	return nil
}

func (s *Store) DeleteTransformation(ctx context.Context, tfID id.ID) error {
	res, err := s.pg.NewDelete((*transformationModel)(nil)).
		Where("id = ?", tfID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrTransformationNotFound
	}
	return nil
}

func (s *Store) ListTransformations(ctx context.Context, endpointID id.ID) ([]*transform.Transformation, error) {
	var models []transformationModel
	if err := s.pg.NewSelect(&models).
		Where("endpoint_id = ?", endpointID.String()).
		OrderExpr("priority ASC, created_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*transform.Transformation, len(models))
	for i := range models {
		t, err := fromTransformationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", evtID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) ListEvents(ctx context.Context, projectID id.ID, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models).Where("project_id = ?", projectID.String())

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if !opts.EndpointID.IsNil() {
		q = q.Where("endpoint_id = ?", opts.EndpointID.String())
	}
	if opts.EventType != "" {
		q = q.Where("event_type = ?", opts.EventType)
	}
	if opts.From != nil {
		q = q.Where("created_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("created_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) DequeuePendingEvents(ctx context.Context, limit int) ([]*event.Event, error) {
	// Use raw SQL for the FOR UPDATE SKIP LOCKED dequeue pattern.
	var models []eventModel
	err := s.pg.NewRaw(`
		UPDATE hookline_events
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM hookline_events
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) UpdateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEventNotFound
	}
	return nil
}

func (s *Store) TouchEventAttempt(ctx context.Context, evtID id.ID, attemptCount int) error {
	t := now()
	res, err := s.pg.NewUpdate((*eventModel)(nil)).
		Set("attempt_count = GREATEST(attempt_count, ?)", attemptCount).
		Set("last_attempt_at = ?", t).
		Set("updated_at = ?", t).
		Where("id = ?", evtID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEventNotFound
	}
	return nil
}

// ==================== Delivery Store ====================

func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) EnqueueBatch(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}
	models := make([]deliveryModel, len(ds))
	for i, d := range ds {
		models[i] = *toDeliveryModel(d)
	}
	_, err := s.pg.NewInsert(&models).Exec(ctx)
	return err
}

func (s *Store) Dequeue(ctx context.Context, limit int) ([]*delivery.Delivery, error) {
	// Use raw SQL for the FOR UPDATE SKIP LOCKED dequeue pattern. Claimed
	// rows older than the claim timeout belong to a crashed worker and go
	// back on the queue.
	var models []deliveryModel
	err := s.pg.NewRaw(`
		UPDATE hookline_deliveries
		SET state = 'claimed', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM hookline_deliveries
			WHERE (state = 'pending' AND next_attempt_at <= NOW())
			   OR (state = 'claimed' AND updated_at <= NOW() - make_interval(secs => $1))
			ORDER BY next_attempt_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, int(claimTimeout.Seconds()), limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrDeliveryNotFound
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	m := new(deliveryModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", delID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) ListByEvent(ctx context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	if err := s.pg.NewSelect(&models).
		Where("event_id = ?", evtID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) DeleteByEvent(ctx context.Context, evtID id.ID) error {
	// Attempt history is append-only and survives; in-place replay relies
	// on this.
	_, err := s.pg.NewDelete((*deliveryModel)(nil)).
		Where("event_id = ?", evtID.String()).
		Exec(ctx)
	return err
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.pg.NewSelect((*deliveryModel)(nil)).
		Where("state = ?", string(delivery.StatePending)).
		Count(ctx)
	return count, err
}

func (s *Store) AppendAttempt(ctx context.Context, a *delivery.Attempt) error {
	m := toAttemptModel(a)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListAttempts(ctx context.Context, evtID id.ID) ([]*delivery.Attempt, error) {
	var models []attemptModel
	if err := s.pg.NewSelect(&models).
		Where("event_id = ?", evtID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Attempt, len(models))
	for i := range models {
		a, err := fromAttemptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== DLQ Store ====================

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQModel(entry)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqModel
	q := s.pg.NewSelect(&models)

	if !opts.ProjectID.IsNil() {
		q = q.Where("project_id = ?", opts.ProjectID.String())
	}
	if opts.EndpointID != nil {
		q = q.Where("endpoint_id = ?", opts.EndpointID.String())
	}
	if opts.From != nil {
		q = q.Where("failed_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("failed_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("failed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*dlq.Entry, len(models))
	for i := range models {
		entry, err := fromDLQModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = entry
	}
	return result, nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	m := new(dlqModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", dlqID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrDLQNotFound
		}
		return nil, err
	}
	return fromDLQModel(m)
}

func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	entry, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}

	t := now()
	if err := s.replayEntry(ctx, entry, t); err != nil {
		return err
	}

	_, err = s.pg.NewUpdate((*dlqModel)(nil)).
		Set("replayed_at = ?", t).
		Set("updated_at = ?", t).
		Where("id = ?", dlqID.String()).
		Exec(ctx)
	return err
}

// replayEntry resets the entry's delivery in place, or recreates it when the
// original row is gone.
func (s *Store) replayEntry(ctx context.Context, entry *dlq.Entry, t time.Time) error {
	res, err := s.pg.NewUpdate((*deliveryModel)(nil)).
		Set("state = ?", string(delivery.StatePending)).
		Set("attempt_count = 0").
		Set("next_attempt_at = ?", t).
		Set("completed_at = NULL").
		Set("updated_at = ?", t).
		Where("id = ?", entry.DeliveryID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	maxAttempts := entry.AttemptCount
	if maxAttempts <= 0 {
		maxAttempts = endpoint.DefaultRetryConfig().MaxAttempts
	}

	d := &delivery.Delivery{
		Entity:         hookline.NewEntity(),
		ID:             id.NewDeliveryID(),
		EventID:        entry.EventID,
		EndpointID:     entry.EndpointID,
		DestinationURL: entry.DestinationURL,
		Payload:        entry.Payload,
		State:          delivery.StatePending,
		MaxAttempts:    maxAttempts,
		NextAttemptAt:  t,
	}
	return s.Enqueue(ctx, d)
}

func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	var models []dlqModel
	if err := s.pg.NewSelect(&models).
		Where("failed_at >= ?", from).
		Where("failed_at <= ?", to).
		Where("replayed_at IS NULL").
		Scan(ctx); err != nil {
		return 0, err
	}

	t := now()
	var count int64
	for i := range models {
		entry, err := fromDLQModel(&models[i])
		if err != nil {
			return count, err
		}
		if err := s.replayEntry(ctx, entry, t); err != nil {
			return count, err
		}
		if _, err := s.pg.NewUpdate((*dlqModel)(nil)).
			Set("replayed_at = ?", t).
			Set("updated_at = ?", t).
			Where("id = ?", models[i].ID).
			Exec(ctx); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*dlqModel)(nil)).
		Where("failed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.pg.NewSelect((*dlqModel)(nil)).
		Count(ctx)
	return count, err
}

// endpointUniqueErr maps Postgres unique violations on the endpoints table to
// the endpoint package sentinels.
func endpointUniqueErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value violates unique constraint") {
		return err
	}
	switch {
	case strings.Contains(msg, "short_url"):
		return endpoint.ErrShortURLTaken
	case strings.Contains(msg, "url_path"):
		return endpoint.ErrURLPathTaken
	}
	return err
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

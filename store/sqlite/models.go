package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/routing"
	"github.com/hookline/hookline/signature"
	"github.com/hookline/hookline/transform"
)

// --- Project models ---

type projectModel struct {
	grove.BaseModel `grove:"table:hookline_projects"`

	ID            string    `grove:"id,pk"`
	Name          string    `grove:"name"`
	Slug          string    `grove:"slug,unique"`
	APIKey        string    `grove:"api_key,unique"`
	WebhookSecret string    `grove:"webhook_secret"`
	Enabled       bool      `grove:"enabled"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
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
	pID, err := id.ParseProjectID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID %q: %w", m.ID, err)
	}

	return &project.Project{
		Entity:        entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            pID,
		Name:          m.Name,
		Slug:          m.Slug,
		APIKey:        m.APIKey,
		WebhookSecret: m.WebhookSecret,
		Enabled:       m.Enabled,
	}, nil
}

// --- Endpoint models ---

type endpointModel struct {
	grove.BaseModel `grove:"table:hookline_endpoints"`

	ID              string    `grove:"id,pk"`
	ProjectID       string    `grove:"project_id"`
	Name            string    `grove:"name"`
	Slug            string    `grove:"slug"`
	URLPath         string    `grove:"url_path"`
	ShortURL        string    `grove:"short_url,unique"`
	DestinationURLs string    `grove:"destination_urls"`
	AuthMethod      string    `grove:"auth_method"`
	AuthSecret      string    `grove:"auth_secret"`
	RetryConfig     string    `grove:"retry_config"`
	Headers         string    `grove:"headers"`
	RequestTimeout  int       `grove:"request_timeout"`
	RateLimit       int       `grove:"rate_limit"`
	Enabled         bool      `grove:"enabled"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	urls, _ := json.Marshal(ep.DestinationURLs) //nolint:errcheck // best-effort
	retry, _ := json.Marshal(ep.Retry)          //nolint:errcheck // best-effort
	headers, _ := json.Marshal(ep.Headers)      //nolint:errcheck // best-effort

	return &endpointModel{
		ID:              ep.ID.String(),
		ProjectID:       ep.ProjectID.String(),
		Name:            ep.Name,
		Slug:            ep.Slug,
		URLPath:         ep.URLPath,
		ShortURL:        ep.ShortURL,
		DestinationURLs: string(urls),
		AuthMethod:      string(ep.AuthMethod),
		AuthSecret:      ep.AuthSecret,
		RetryConfig:     string(retry),
		Headers:         string(headers),
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

	var urls []string
	if m.DestinationURLs != "" {
		if err := json.Unmarshal([]byte(m.DestinationURLs), &urls); err != nil {
			return nil, fmt.Errorf("decode destination URLs: %w", err)
		}
	}

	var retry endpoint.RetryConfig
	if m.RetryConfig != "" {
		if err := json.Unmarshal([]byte(m.RetryConfig), &retry); err != nil {
			return nil, fmt.Errorf("decode retry config: %w", err)
		}
	}

	var headers map[string]string
	if m.Headers != "" {
		if err := json.Unmarshal([]byte(m.Headers), &headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}

	return &endpoint.Endpoint{
		Entity:          entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              epID,
		ProjectID:       projID,
		Name:            m.Name,
		Slug:            m.Slug,
		URLPath:         m.URLPath,
		ShortURL:        m.ShortURL,
		DestinationURLs: urls,
		AuthMethod:      signature.Method(m.AuthMethod),
		AuthSecret:      m.AuthSecret,
		Retry:           retry,
		Headers:         headers,
		RequestTimeout:  m.RequestTimeout,
		RateLimit:       m.RateLimit,
		Enabled:         m.Enabled,
	}, nil
}

// --- Routing rule models ---

type ruleModel struct {
	grove.BaseModel `grove:"table:hookline_rules"`

	ID           string    `grove:"id,pk"`
	EndpointID   string    `grove:"endpoint_id"`
	Name         string    `grove:"name"`
	Description  string    `grove:"description"`
	Action       string    `grove:"action"`
	Priority     int       `grove:"priority"`
	Conditions   string    `grove:"conditions"`
	Destinations string    `grove:"destinations"`
	Enabled      bool      `grove:"enabled"`
	CreatedAt    time.Time `grove:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"`
}

func toRuleModel(r *routing.Rule) *ruleModel {
	conds, _ := json.Marshal(r.Conditions)  //nolint:errcheck // best-effort
	dests, _ := json.Marshal(r.Destinations) //nolint:errcheck // best-effort

	return &ruleModel{
		ID:           r.ID.String(),
		EndpointID:   r.EndpointID.String(),
		Name:         r.Name,
		Description:  r.Description,
		Action:       string(r.Action),
		Priority:     r.Priority,
		Conditions:   string(conds),
		Destinations: string(dests),
		Enabled:      r.Enabled,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromRuleModel(m *ruleModel) (*routing.Rule, error) {
	rID, err := id.ParseRuleID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse rule ID %q: %w", m.ID, err)
	}

	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}

	var conds []condition.Condition
	if m.Conditions != "" {
		if err := json.Unmarshal([]byte(m.Conditions), &conds); err != nil {
			return nil, fmt.Errorf("decode conditions: %w", err)
		}
	}

	var dests []routing.Destination
	if m.Destinations != "" {
		if err := json.Unmarshal([]byte(m.Destinations), &dests); err != nil {
			return nil, fmt.Errorf("decode destinations: %w", err)
		}
	}

	return &routing.Rule{
		Entity:       entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:           rID,
		EndpointID:   epID,
		Name:         m.Name,
		Description:  m.Description,
		Action:       routing.Action(m.Action),
		Priority:     m.Priority,
		Conditions:   conds,
		Destinations: dests,
		Enabled:      m.Enabled,
	}, nil
}

// --- Transformation models ---

type transformationModel struct {
	grove.BaseModel `grove:"table:hookline_transformations"`

	ID         string    `grove:"id,pk"`
	EndpointID string    `grove:"endpoint_id"`
	Name       string    `grove:"name"`
	Type       string    `grove:"type"`
	Rules      string    `grove:"rules"`
	Conditions string    `grove:"conditions"`
	Priority   int       `grove:"priority"`
	Enabled    bool      `grove:"enabled"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toTransformationModel(t *transform.Transformation) *transformationModel {
	conds, _ := json.Marshal(t.Conditions) //nolint:errcheck // best-effort

	return &transformationModel{
		ID:         t.ID.String(),
		EndpointID: t.EndpointID.String(),
		Name:       t.Name,
		Type:       string(t.Type),
		Rules:      string(t.Rules),
		Conditions: string(conds),
		Priority:   t.Priority,
		Enabled:    t.Enabled,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func fromTransformationModel(m *transformationModel) (*transform.Transformation, error) {
	tID, err := id.ParseTransformationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse transformation ID %q: %w", m.ID, err)
	}

	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}

	var conds []condition.Condition
	if m.Conditions != "" {
		if err := json.Unmarshal([]byte(m.Conditions), &conds); err != nil {
			return nil, fmt.Errorf("decode conditions: %w", err)
		}
	}

	var rules json.RawMessage
	if m.Rules != "" {
		rules = json.RawMessage(m.Rules)
	}

	return &transform.Transformation{
		Entity:     entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         tID,
		EndpointID: epID,
		Name:       m.Name,
		Type:       transform.Type(m.Type),
		Rules:      rules,
		Conditions: conds,
		Priority:   m.Priority,
		Enabled:    m.Enabled,
	}, nil
}

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:hookline_events"`

	ID            string     `grove:"id,pk"`
	ProjectID     string     `grove:"project_id"`
	EndpointID    string     `grove:"endpoint_id"`
	EventType     string     `grove:"event_type"`
	Payload       string     `grove:"payload"`
	Headers       string     `grove:"headers"`
	SourceIP      string     `grove:"source_ip"`
	UserAgent     string     `grove:"user_agent"`
	Status        string     `grove:"status"`
	AttemptCount  int        `grove:"attempt_count"`
	ReplayCount   int        `grove:"replay_count"`
	ReplayOf      string     `grove:"replay_of"`
	LastAttemptAt *time.Time `grove:"last_attempt_at"`
	DeliveredAt   *time.Time `grove:"delivered_at"`
	FailedAt      *time.Time `grove:"failed_at"`
	CreatedAt     time.Time  `grove:"created_at"`
	UpdatedAt     time.Time  `grove:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	headers, _ := json.Marshal(evt.Headers) //nolint:errcheck // best-effort

	replayOf := ""
	if !evt.ReplayOf.IsNil() {
		replayOf = evt.ReplayOf.String()
	}

	return &eventModel{
		ID:            evt.ID.String(),
		ProjectID:     evt.ProjectID.String(),
		EndpointID:    evt.EndpointID.String(),
		EventType:     evt.EventType,
		Payload:       string(evt.Payload),
		Headers:       string(headers),
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

	var headers map[string]string
	if m.Headers != "" {
		if err := json.Unmarshal([]byte(m.Headers), &headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}

	var payload json.RawMessage
	if m.Payload != "" {
		payload = json.RawMessage(m.Payload)
	}

	return &event.Event{
		Entity:        entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            evtID,
		ProjectID:     projID,
		EndpointID:    epID,
		EventType:     m.EventType,
		Payload:       payload,
		Headers:       headers,
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

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:hookline_deliveries"`

	ID             string     `grove:"id,pk"`
	EventID        string     `grove:"event_id"`
	EndpointID     string     `grove:"endpoint_id"`
	DestinationURL string     `grove:"destination_url"`
	Payload        string     `grove:"payload"`
	State          string     `grove:"state"`
	AttemptCount   int        `grove:"attempt_count"`
	MaxAttempts    int        `grove:"max_attempts"`
	NextAttemptAt  time.Time  `grove:"next_attempt_at"`
	LastError      string     `grove:"last_error"`
	LastStatusCode int        `grove:"last_status_code"`
	CompletedAt    *time.Time `grove:"completed_at"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

// stateClaimed marks a delivery a worker is processing. It exists only in
// storage; dequeued rows surface as pending in the domain.
const stateClaimed = "claimed"

// claimTimeout is how long a claimed delivery may sit unprocessed before a
// dequeue reclaims it for a fresh attempt.
const claimTimeout = 5 * time.Minute

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		EventID:        d.EventID.String(),
		EndpointID:     d.EndpointID.String(),
		DestinationURL: d.DestinationURL,
		Payload:        string(d.Payload),
		State:          string(d.State),
		AttemptCount:   d.AttemptCount,
		MaxAttempts:    d.MaxAttempts,
		NextAttemptAt:  d.NextAttemptAt,
		LastError:      d.LastError,
		LastStatusCode: d.LastStatusCode,
		CompletedAt:    d.CompletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	dID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}

	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}

	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}

	state := delivery.State(m.State)
	if m.State == stateClaimed {
		state = delivery.StatePending
	}

	var payload json.RawMessage
	if m.Payload != "" {
		payload = json.RawMessage(m.Payload)
	}

	return &delivery.Delivery{
		Entity:         entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             dID,
		EventID:        evtID,
		EndpointID:     epID,
		DestinationURL: m.DestinationURL,
		Payload:        payload,
		State:          state,
		AttemptCount:   m.AttemptCount,
		MaxAttempts:    m.MaxAttempts,
		NextAttemptAt:  m.NextAttemptAt,
		LastError:      m.LastError,
		LastStatusCode: m.LastStatusCode,
		CompletedAt:    m.CompletedAt,
	}, nil
}

// --- Attempt models ---

type attemptModel struct {
	grove.BaseModel `grove:"table:hookline_attempts"`

	ID             string    `grove:"id,pk"`
	DeliveryID     string    `grove:"delivery_id"`
	EventID        string    `grove:"event_id"`
	DestinationURL string    `grove:"destination_url"`
	Status         string    `grove:"status"`
	ResponseCode   int       `grove:"response_code"`
	ResponseBody   string    `grove:"response_body"`
	ErrorMessage   string    `grove:"error_message"`
	LatencyMs      int       `grove:"latency_ms"`
	CreatedAt      time.Time `grove:"created_at"`
}

func toAttemptModel(a *delivery.Attempt) *attemptModel {
	return &attemptModel{
		ID:             a.ID.String(),
		DeliveryID:     a.DeliveryID.String(),
		EventID:        a.EventID.String(),
		DestinationURL: a.DestinationURL,
		Status:         string(a.Status),
		ResponseCode:   a.ResponseCode,
		ResponseBody:   a.ResponseBody,
		ErrorMessage:   a.ErrorMessage,
		LatencyMs:      a.LatencyMs,
		CreatedAt:      a.CreatedAt,
	}
}

func fromAttemptModel(m *attemptModel) (*delivery.Attempt, error) {
	aID, err := id.ParseAttemptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}

	dID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}

	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}

	return &delivery.Attempt{
		ID:             aID,
		DeliveryID:     dID,
		EventID:        evtID,
		DestinationURL: m.DestinationURL,
		Status:         delivery.AttemptStatus(m.Status),
		ResponseCode:   m.ResponseCode,
		ResponseBody:   m.ResponseBody,
		ErrorMessage:   m.ErrorMessage,
		LatencyMs:      m.LatencyMs,
		CreatedAt:      m.CreatedAt,
	}, nil
}

// --- DLQ models ---

type dlqModel struct {
	grove.BaseModel `grove:"table:hookline_dlq"`

	ID             string     `grove:"id,pk"`
	DeliveryID     string     `grove:"delivery_id"`
	EventID        string     `grove:"event_id"`
	EndpointID     string     `grove:"endpoint_id"`
	ProjectID      string     `grove:"project_id"`
	EventType      string     `grove:"event_type"`
	DestinationURL string     `grove:"destination_url"`
	Payload        string     `grove:"payload"`
	Error          string     `grove:"error"`
	AttemptCount   int        `grove:"attempt_count"`
	LastStatusCode int        `grove:"last_status_code"`
	ReplayedAt     *time.Time `grove:"replayed_at"`
	FailedAt       time.Time  `grove:"failed_at"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toDLQModel(e *dlq.Entry) *dlqModel {
	return &dlqModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		EventID:        e.EventID.String(),
		EndpointID:     e.EndpointID.String(),
		ProjectID:      e.ProjectID.String(),
		EventType:      e.EventType,
		DestinationURL: e.DestinationURL,
		Payload:        string(e.Payload),
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQModel(m *dlqModel) (*dlq.Entry, error) {
	eID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}

	dID, err := id.ParseDeliveryID(m.DeliveryID)
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

	var payload json.RawMessage
	if m.Payload != "" {
		payload = json.RawMessage(m.Payload)
	}

	return &dlq.Entry{
		Entity:         entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             eID,
		DeliveryID:     dID,
		EventID:        evtID,
		EndpointID:     epID,
		ProjectID:      projID,
		EventType:      m.EventType,
		DestinationURL: m.DestinationURL,
		Payload:        payload,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}

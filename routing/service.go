package routing

import (
	"context"
	"net/url"

	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Input is the creation/update payload for routing rules.
type Input struct {
	EndpointID   id.ID                 `json:"endpoint_id"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Action       string                `json:"action"`
	Priority     int                   `json:"priority"`
	Conditions   []condition.Condition `json:"conditions,omitempty"`
	Destinations []Destination         `json:"destinations,omitempty"`
}

// Service provides routing rule management operations.
type Service struct {
	store Store
}

// NewService creates a routing rule service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create registers a new rule. Drop rules never keep destinations.
func (svc *Service) Create(ctx context.Context, in Input) (*Rule, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	r := &Rule{
		Entity:       entity.New(),
		ID:           id.NewRuleID(),
		EndpointID:   in.EndpointID,
		Name:         in.Name,
		Description:  in.Description,
		Action:       Action(in.Action),
		Priority:     in.Priority,
		Conditions:   in.Conditions,
		Destinations: in.Destinations,
		Enabled:      true,
	}
	if r.Action == ActionDrop {
		r.Destinations = nil
	}

	if err := svc.store.CreateRule(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns a rule by ID.
func (svc *Service) Get(ctx context.Context, ruleID id.ID) (*Rule, error) {
	return svc.store.GetRule(ctx, ruleID)
}

// Update modifies a rule.
func (svc *Service) Update(ctx context.Context, ruleID id.ID, in Input) (*Rule, error) {
	r, err := svc.store.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		r.Name = in.Name
	}
	if in.Description != "" {
		r.Description = in.Description
	}
	if in.Action != "" {
		if !ValidAction(Action(in.Action)) {
			return nil, &ValidationError{Field: "action", Message: "must be route or drop"}
		}
		r.Action = Action(in.Action)
	}
	if in.Priority != 0 {
		r.Priority = in.Priority
	}
	if in.Conditions != nil {
		if err := validateConditions(in.Conditions); err != nil {
			return nil, err
		}
		r.Conditions = in.Conditions
	}
	if in.Destinations != nil {
		if err := validateDestinations(in.Destinations); err != nil {
			return nil, err
		}
		r.Destinations = in.Destinations
	}
	if r.Action == ActionDrop {
		r.Destinations = nil
	}

	if err := svc.store.UpdateRule(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetEnabled toggles a rule without deleting it.
func (svc *Service) SetEnabled(ctx context.Context, ruleID id.ID, enabled bool) error {
	r, err := svc.store.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	r.Enabled = enabled
	return svc.store.UpdateRule(ctx, r)
}

// Delete removes a rule.
func (svc *Service) Delete(ctx context.Context, ruleID id.ID) error {
	return svc.store.DeleteRule(ctx, ruleID)
}

// List returns an endpoint's rules in evaluation order.
func (svc *Service) List(ctx context.Context, epID id.ID) ([]*Rule, error) {
	return svc.store.ListRules(ctx, epID)
}

func validate(in Input) error {
	if in.EndpointID.IsNil() {
		return &ValidationError{Field: "endpoint_id", Message: "required"}
	}
	if in.Name == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	if !ValidAction(Action(in.Action)) {
		return &ValidationError{Field: "action", Message: "must be route or drop"}
	}
	if Action(in.Action) == ActionRoute && len(in.Destinations) == 0 {
		return &ValidationError{Field: "destinations", Message: "required for route rules"}
	}
	if err := validateConditions(in.Conditions); err != nil {
		return err
	}
	return validateDestinations(in.Destinations)
}

func validateConditions(conds []condition.Condition) error {
	for _, c := range conds {
		if c.Field == "" {
			return &ValidationError{Field: "conditions", Message: "condition field is required"}
		}
		if !condition.ValidOperator(c.Operator) {
			return &ValidationError{Field: "conditions", Message: "unknown operator: " + string(c.Operator)}
		}
	}
	return nil
}

func validateDestinations(dests []Destination) error {
	for _, d := range dests {
		if _, err := url.ParseRequestURI(d.URL); err != nil {
			return &ValidationError{Field: "destinations", Message: "invalid URL: " + d.URL}
		}
	}
	return nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "routing validation: " + e.Field + ": " + e.Message
}

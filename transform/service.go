package transform

import (
	"context"
	"encoding/json"

	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Input is the creation/update payload for transformations.
type Input struct {
	EndpointID id.ID                 `json:"endpoint_id"`
	Name       string                `json:"name"`
	Type       string                `json:"type"`
	Rules      json.RawMessage       `json:"transformation_rules"`
	Conditions []condition.Condition `json:"conditions,omitempty"`
	Priority   int                   `json:"priority"`
}

// Service provides transformation management operations.
type Service struct {
	store Store
}

// NewService creates a transformation service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create registers a new transformation after validating its rules against
// the schema for its type.
func (svc *Service) Create(ctx context.Context, in Input) (*Transformation, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	t := &Transformation{
		Entity:     entity.New(),
		ID:         id.NewTransformationID(),
		EndpointID: in.EndpointID,
		Name:       in.Name,
		Type:       Type(in.Type),
		Rules:      in.Rules,
		Conditions: in.Conditions,
		Priority:   in.Priority,
		Enabled:    true,
	}

	if err := svc.store.CreateTransformation(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a transformation by ID.
func (svc *Service) Get(ctx context.Context, tfID id.ID) (*Transformation, error) {
	return svc.store.GetTransformation(ctx, tfID)
}

// Update modifies a transformation. Changing the type revalidates the rules
// blob against the new type's schema.
func (svc *Service) Update(ctx context.Context, tfID id.ID, in Input) (*Transformation, error) {
	t, err := svc.store.GetTransformation(ctx, tfID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		t.Name = in.Name
	}
	if in.Type != "" {
		t.Type = Type(in.Type)
	}
	if in.Rules != nil {
		t.Rules = in.Rules
	}
	if in.Type != "" || in.Rules != nil {
		if err := ValidateRules(t.Type, t.Rules); err != nil {
			return nil, err
		}
	}
	if in.Conditions != nil {
		if err := validateConditions(in.Conditions); err != nil {
			return nil, err
		}
		t.Conditions = in.Conditions
	}
	if in.Priority != 0 {
		t.Priority = in.Priority
	}

	if err := svc.store.UpdateTransformation(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetEnabled toggles a transformation without deleting it.
func (svc *Service) SetEnabled(ctx context.Context, tfID id.ID, enabled bool) error {
	t, err := svc.store.GetTransformation(ctx, tfID)
	if err != nil {
		return err
	}
	t.Enabled = enabled
	return svc.store.UpdateTransformation(ctx, t)
}

// Delete removes a transformation.
func (svc *Service) Delete(ctx context.Context, tfID id.ID) error {
	return svc.store.DeleteTransformation(ctx, tfID)
}

// List returns an endpoint's transformations in application order.
func (svc *Service) List(ctx context.Context, epID id.ID) ([]*Transformation, error) {
	return svc.store.ListTransformations(ctx, epID)
}

func validate(in Input) error {
	if in.EndpointID.IsNil() {
		return &ValidationError{Field: "endpoint_id", Message: "required"}
	}
	if in.Name == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	if err := ValidateRules(Type(in.Type), in.Rules); err != nil {
		return err
	}
	return validateConditions(in.Conditions)
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

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "transform validation: " + e.Field + ": " + e.Message
}

package hookline

import "errors"

// Sentinel errors returned by gateway operations.
var (
	// ErrNoStore is returned when a Gateway is created without a store.
	ErrNoStore = errors.New("hookline: store is required")

	// ErrProjectNotFound is returned when a project cannot be found.
	ErrProjectNotFound = errors.New("hookline: project not found")

	// ErrProjectDisabled is returned when ingesting for a deactivated project.
	ErrProjectDisabled = errors.New("hookline: project is disabled")

	// ErrEndpointNotFound is returned when an endpoint cannot be found.
	ErrEndpointNotFound = errors.New("hookline: endpoint not found")

	// ErrEndpointDisabled is returned when ingesting or replaying for a
	// deactivated endpoint.
	ErrEndpointDisabled = errors.New("hookline: endpoint is disabled")

	// ErrVerificationFailed is returned when an inbound request does not
	// carry a valid credential for the endpoint's auth method.
	ErrVerificationFailed = errors.New("hookline: signature verification failed")

	// ErrMalformedPayload is returned when an inbound JSON body is empty or
	// cannot be parsed.
	ErrMalformedPayload = errors.New("hookline: malformed payload")

	// ErrRuleNotFound is returned when a routing rule cannot be found.
	ErrRuleNotFound = errors.New("hookline: routing rule not found")

	// ErrTransformationNotFound is returned when a transformation cannot be found.
	ErrTransformationNotFound = errors.New("hookline: transformation not found")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("hookline: event not found")

	// ErrEventInFlight is returned when replaying an event that is still
	// being processed.
	ErrEventInFlight = errors.New("hookline: event is still processing")

	// ErrDeliveryNotFound is returned when a delivery cannot be found.
	ErrDeliveryNotFound = errors.New("hookline: delivery not found")

	// ErrDLQNotFound is returned when a DLQ entry cannot be found.
	ErrDLQNotFound = errors.New("hookline: dlq entry not found")

	// ErrInvalidConfig is returned when tenant-supplied configuration
	// (retry, auth, rules, transformations) fails write-time validation.
	ErrInvalidConfig = errors.New("hookline: invalid configuration")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("hookline: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("hookline: migration failed")
)

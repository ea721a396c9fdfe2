package endpoint

import (
	"encoding/json"

	"github.com/hookline/hookline/id"
)

// Input is the creation/update payload for endpoints. Tenant-supplied
// configuration blobs (retry_config) arrive as raw JSON and are validated
// against a schema at write time, never at delivery time.
type Input struct {
	// ProjectID identifies the owning project.
	ProjectID id.ID `json:"project_id"`

	// Name is the human-readable endpoint name.
	Name string `json:"name"`

	// Slug is a URL-safe identifier within the project. Derived from Name
	// when empty on create.
	Slug string `json:"slug,omitempty"`

	// URLPath is the human ingestion path, unique within the project.
	URLPath string `json:"url_path"`

	// DestinationURLs are the default delivery targets, in order.
	DestinationURLs []string `json:"destination_urls"`

	// AuthMethod selects inbound verification: none, hmac, shared_secret, bearer.
	AuthMethod string `json:"auth_method,omitempty"`

	// AuthSecret is the method-specific credential. Auto-generated for hmac
	// if empty on create.
	AuthSecret string `json:"auth_secret,omitempty"`

	// RetryConfig is the raw retry policy blob, schema-validated on write.
	RetryConfig json.RawMessage `json:"retry_config,omitempty"`

	// Headers are static headers added to every outbound delivery.
	Headers map[string]string `json:"headers_config,omitempty"`

	// RequestTimeout is the per-attempt HTTP timeout in seconds.
	RequestTimeout int `json:"request_timeout,omitempty"`

	// RateLimit is the maximum outbound deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`
}

package redis

// Key prefixes for primary entity storage.
const (
	prefixProject        = "hookline:proj:"
	prefixEndpoint       = "hookline:ep:"
	prefixRule           = "hookline:rule:"
	prefixTransformation = "hookline:tf:"
	prefixEvent          = "hookline:evt:"
	prefixDelivery       = "hookline:del:"
	prefixAttempt        = "hookline:att:"
	prefixDLQ            = "hookline:dlq:"
)

// Key prefixes for unique indexes.
const (
	uniqueProjectSlug   = "hookline:u:proj:slug:"  // + slug -> project ID
	uniqueProjectAPIKey = "hookline:u:proj:key:"   // + api key -> project ID
	uniqueEndpointShort = "hookline:u:ep:short:"   // + short URL -> endpoint ID
	uniqueEndpointPath  = "hookline:u:ep:path:"    // + url path -> endpoint ID
)

// Key prefixes for sorted set indexes.
const (
	zProjectAll    = "hookline:z:proj:all"
	zEndpointProj  = "hookline:z:ep:proj:" // + project ID
	zRuleEndpoint  = "hookline:z:rule:ep:" // + endpoint ID
	zTfEndpoint    = "hookline:z:tf:ep:"   // + endpoint ID
	zEventProj     = "hookline:z:evt:proj:" // + project ID
	zEventEndpoint = "hookline:z:evt:ep:"   // + endpoint ID
	zEventPending  = "hookline:z:evt:pending"
	zDeliveryEvt   = "hookline:z:del:evt:" // + event ID
	zDeliveryPend  = "hookline:z:del:pending"
	zAttemptEvt    = "hookline:z:att:evt:" // + event ID
	zDLQAll        = "hookline:z:dlq:all"
	zDLQProject    = "hookline:z:dlq:proj:" // + project ID
	zDLQEndpoint   = "hookline:z:dlq:ep:"   // + endpoint ID
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

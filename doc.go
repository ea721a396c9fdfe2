// Package hookline provides a multi-tenant webhook gateway for Go.
//
// Hookline is a library — not a service. Import it into your application to
// get per-project ingestion endpoints, priority-ordered routing rules,
// payload transformations, and guaranteed fan-out delivery with retries and
// a dead letter queue.
//
// Key features:
//   - Ingestion endpoints addressable by url_path or an 8-character short URL
//   - Inbound verification: HMAC-SHA256, shared secret, or bearer token
//   - First-match-wins routing rules with conditional drop
//   - Field mapping, template, JavaScript, and jq payload transformations
//   - Per-endpoint exponential backoff retries with dead letter queue
//   - Event replay, in place or as a new event
//   - Composable store pattern with multiple backends (Postgres, SQLite, Redis, Memory)
//
// Quick start:
//
//	gw, err := hookline.New(
//	    hookline.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gw.Start(ctx)
//	defer gw.Stop(ctx)
//
//	evt, err := gw.IngestByURLPath(ctx, "billing-hooks", hookline.IngestRequest{
//	    Body:    body,
//	    Headers: r.Header,
//	})
package hookline

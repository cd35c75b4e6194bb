// Package integrations provides HTTP clients for the App Store endpoints.
//
// # Overview
//
// The storefront client lives in a subpackage:
//
//   - [itunes]: search, collections, developer listings, similar apps,
//     app details and rating histograms
//
// # Shared Infrastructure
//
// The [Client] type provides the GET-and-parse transport used by the
// storefront client:
//
//   - Default and per-request headers (storefront and language)
//   - JSON, text and raw byte bodies, read in full before returning
//   - Status mapping to [ErrNotFound] and [ErrNetwork]
//   - [ErrDecode] for bodies that are not the expected JSON
//   - Events for [observability.HTTPHooks]
//
// Transient failures (connection errors, 5xx, undecodable bodies) are
// wrapped in [httputil.RetryableError]; whether they are actually retried
// is up to the caller.
//
// A deadline bounds one request including its body read:
//
//	ctx, cancel := integrations.WithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	err := client.Get(ctx, url, &resp)
//
// [itunes]: github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes
// [observability.HTTPHooks]: github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/observability.HTTPHooks
// [httputil.RetryableError]: github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/httputil.RetryableError
package integrations

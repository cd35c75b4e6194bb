// Package httputil provides HTTP utilities for the App Store clients.
//
// # Retry
//
// [Policy] wraps a request with a bounded number of attempts and a fixed
// pause between them. Only failures wrapped in [RetryableError] are retried:
//
//   - Network errors
//   - Any status other than 200 or 404, throttling answers included
//   - Bodies that could not be decoded
//
// Detail and rating lookups retry exactly once after a two second pause:
//
//	p := httputil.Policy{Attempts: 2, Delay: 2 * time.Second}
//	err := p.Do(ctx, func() error {
//	    return client.Get(ctx, url, &resp)
//	})
//
// Search and collection requests are not retried.
//
// # Throttling
//
// [Sleep] is a context-aware pause used for the fixed pre-request delays in
// batch and rating operations.
package httputil

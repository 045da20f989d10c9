// Package httputil provides HTTP retry helpers for registry clients.
//
// [Retry] wraps an operation with automatic retry for transient failures
// such as network errors and 5xx responses. Only errors wrapped in
// [RetryableError] are retried; everything else is returned immediately.
// The delay doubles after each failed attempt:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
//
// Response caching lives in the cache package, which offers file, Redis,
// and MongoDB backends behind one interface.
package httputil

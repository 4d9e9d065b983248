// Package services implements [ListService], the HTTP client for the list service.
//
// # Endpoints
//
// Owner endpoints live under /lists and require a bearer token. The token is
// attached by an [oauth2.Transport] backed by a static token source.
//
// Share endpoints live under /share/:token and are public. They are sent
// through a separate client that never carries the owner's token, so a
// shopkeeper can use the CLI without an account.
//
// # Rate Limiting
//
// Requests wait on a [rate.Limiter] configured from api.rate_limit. A zero
// limit disables waiting.
//
// # Error Handling
//
// Non-2xx responses become [*APIError], which matches:
//   - [shared.ErrAPIRequest] : always
//   - [shared.ErrNotAuthenticated] : status 401
//   - [shared.ErrListNotFound] or [shared.ErrItemNotFound] : status 404
//   - [shared.ErrServiceUnavailable] : status 503
//
// Input is checked before any request is sent and reported as
// [shared.ErrMissingArgument] or [shared.ErrInvalidInput].
package services

// Package auth provides authentication middleware for obs-agent.
//
// APIKeyMiddleware(mode, header, key) returns HTTP middleware that validates
// the API key carried in the named request header. It guards the signal push
// endpoints; read endpoints stay open.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or absent,
// the middleware answers 401 with a JSON error body immediately.
package auth

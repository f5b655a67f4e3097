// Package auth provides authentication for the daemon's API surface.
//
// There is no user store. One admin credential (username + Argon2id hash)
// is configured under security.admin, and successful login issues a JWT
// access/refresh pair:
//   - Argon2id password verification (OWASP 2025 parameters)
//   - HS256 tokens validated by signature and expiry alone, so no
//     database is touched on request paths
//   - Refresh tokens are long-lived JWTs distinguished by a type claim;
//     refreshing re-issues a pair, it does not rotate against a store
//
// The API can change mixer routing and mute states on a live system,
// which is why even this single-operator daemon gates its mutating
// routes behind a token.
package auth

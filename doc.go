// Package havenwatch implements the authentication and session subsystem of
// the HavenWatch home safety platform.
//
// The root package contains the credential engine: email/password sign-up and
// sign-in, JWT access tokens with rotating refresh tokens, Redis-backed
// sessions, password reset and email confirmation challenges, and an auth
// event stream (signed-in, signed-out, password-recovery, token-refreshed)
// that downstream consumers subscribe to.
//
// Two integration paths exist on top of the engine:
//
//   - server: an HTTP API exposing the engine (the self-hosted deployment).
//   - provider + adapter: a client for a hosted credential service and a
//     process-wide session adapter with route guarding, for deployments that
//     delegate identity to the hosted service.
//
// Both paths share the event vocabulary and error taxonomy defined here but
// hold no session state in common.
package havenwatch

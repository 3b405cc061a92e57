// Package middleware exposes Echo middleware that guards routes behind
// HavenWatch access tokens.
//
// [Protect] reads the Authorization header, validates the token and its
// backing session through the engine, loads the account, and stores both on
// the request context for handlers to read via [AuthFromContext] and
// [UserFromContext].
//
// This package translates HTTP semantics into engine calls. It does not
// implement authentication logic itself; all decisions are delegated to
// Engine.Validate.
package middleware

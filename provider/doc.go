// Package provider is an HTTP client for a hosted credential service. It
// covers password sign-in and sign-up, sign-out, password recovery, profile
// updates, and refresh-token rotation, and it publishes auth state changes to
// subscribers.
//
// The client tracks the current session in memory. Every operation that
// establishes, replaces, or destroys the session also notifies subscribers
// registered with [Client.OnAuthStateChange]; UI layers drive navigation from
// those events rather than from call sites.
package provider

// Package server exposes the credential engine over HTTP. It wires the Echo
// router, the request logger, per-IP throttling, security headers, and the
// JSON envelope the mobile clients consume.
package server

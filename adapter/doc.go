// Package adapter binds the provider client to an application shell. The
// session [Adapter] owns the loading/authenticated state machine and drives
// navigation from auth events instead of call sites; [Decide] is the route
// guard that keeps unauthenticated users out of protected screens.
package adapter

// Package session houses concrete implementations of the core.SessionStore
// plus the thread lookup used to resume backend conversations across process
// restarts. The contracts live in the core package so higher level packages
// (orchestrator, facade) never depend on concrete storage.
//
// Add additional backends (Redis, Postgres, Firestore, etc.) in sub-packages
// without changing any calling code; only the wiring layer needs to decide
// which implementation to instantiate.
package session

// Package integration runs discovery and sync end to end against a fake
// GitHub API, with the in-memory store and object storage, and reads the
// result back through the admin HTTP API.
package integration

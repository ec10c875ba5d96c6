// Package testing provides helpers for testing rota components against a
// real NATS JetStream instance without external dependencies.
//
// The embedded server starts in milliseconds, uses a random port, and cleans
// up after itself via t.Cleanup, which makes it safe for parallel tests and
// CI environments without Docker.
package testing

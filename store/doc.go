// Package store implements the roster and cursor stores on top of NATS
// JetStream KeyValue buckets.
//
// Candidates are stored one KV row per roster position and the shared cursor
// is a single row in its own bucket. Cursor advancement uses conditional
// updates (revision compare-and-set) so the read-modify-write of an
// assignment happens as one atomic operation on the server, and KV watchers
// provide the change-notification push stream consumed by sessions.
package store

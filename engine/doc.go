// Package engine implements the pure round-robin assignment computation.
//
// The engine holds no state of its own: every function operates on a roster
// snapshot and a cursor value supplied by the caller, making each call
// idempotent with respect to its explicit inputs. Persisting the resulting
// cursor, and treating the surrounding read-modify-write as a critical
// section, is the caller's responsibility (see the root rota package).
//
// All validation failures are typed sentinels from the types package and are
// raised synchronously; the engine performs no I/O.
package engine

// Package rota assigns incoming work items to personnel from an ordered
// roster in strict round-robin order.
//
// The shared "next assignee" cursor lives in a remote NATS JetStream KV
// store, so it survives restarts and is observed by every client. Each
// client runs a Session: a small state machine that performs assignments,
// supports a single undo step, applies change notifications pushed by other
// clients, and falls back to a last-known-good cached snapshot when the
// store is unreachable.
//
// Basic usage:
//
//	st, err := store.New(ctx, nc, store.Config{})
//	if err != nil { /* handle */ }
//
//	cfg := rota.DefaultConfig()
//	session, err := rota.NewSession(&cfg, st, st, rota.WithNotifier(st))
//	if err != nil { /* handle */ }
//	defer session.Close()
//
//	result, err := session.Assign(ctx, 3)
//	// result.AssignedNames holds the next three assignees in order.
//
// The pure assignment math lives in the engine subpackage and can be used
// without any store.
package rota

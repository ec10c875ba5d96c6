package rota

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/lunavale/rota/store"
)

// Connect builds the NATS-backed stores from cfg.Store and returns a
// Session wired to them, with change notifications enabled.
//
// This is the one-call path for applications that load configuration from a
// file; construct the store and session separately when you need different
// backends or store options.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - nc: Established NATS connection; the caller retains ownership
//   - cfg: Session configuration (defaults applied in place)
//   - opts: Optional logger, metrics, and hooks; a WithNotifier option is
//     ignored, the built store always serves as the notifier
//
// Returns:
//   - *Session: Session backed by the NATS KV store
//   - error: Store construction or configuration validation failure
//
// Example:
//
//	cfg, err := rota.LoadConfig("rota.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := rota.Connect(ctx, nc, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
func Connect(ctx context.Context, nc *nats.Conn, cfg *Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	SetDefaults(cfg)

	options := &sessionOptions{}
	for _, opt := range opts {
		opt(options)
	}

	storeOpts := make([]store.Option, 0, 2)
	if options.logger != nil {
		storeOpts = append(storeOpts, store.WithLogger(options.logger))
	}
	if options.metrics != nil {
		storeOpts = append(storeOpts, store.WithMetrics(options.metrics))
	}

	st, err := store.New(ctx, nc, cfg.Store, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	opts = append(opts, WithNotifier(st))

	return NewSession(cfg, st, st, opts...)
}

package rota

import "github.com/lunavale/rota/types"

// Option configures a Session with optional dependencies.
type Option func(*sessionOptions)

// sessionOptions holds optional Session configuration.
type sessionOptions struct {
	logger   types.Logger
	metrics  types.MetricsCollector
	hooks    *types.Hooks
	notifier types.ChangeNotifier
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewSession
//
// Example:
//
//	logger := logging.NewSlogDefault()
//	session, err := rota.NewSession(&cfg, st, st, rota.WithLogger(logger))
func WithLogger(logger types.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewSession
//
// Example:
//
//	collector := metrics.NewPrometheus(nil, "rota")
//	session, err := rota.NewSession(&cfg, st, st, rota.WithMetrics(collector))
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *sessionOptions) {
		o.metrics = metrics
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewSession
//
// Example:
//
//	hooks := &rota.Hooks{
//	    OnCursorChanged: func(ctx context.Context, old, new int) error {
//	        refreshDisplay(new)
//	        return nil
//	    },
//	}
//	session, err := rota.NewSession(&cfg, st, st, rota.WithHooks(hooks))
func WithHooks(hooks *types.Hooks) Option {
	return func(o *sessionOptions) {
		o.hooks = hooks
	}
}

// WithNotifier enables change notifications from the given notifier.
//
// When set, the session starts a watch loop that applies cursor moves and
// roster replacements made by other clients: displayed state is overwritten
// last-write-wins, and a roster replacement discards any pending undo.
// The NATS KV store implements ChangeNotifier, so the store value is
// normally passed here as well.
//
// Parameters:
//   - notifier: Change-notification source
//
// Returns:
//   - Option: Functional option for NewSession
//
// Example:
//
//	st, _ := store.New(ctx, nc, store.Config{})
//	session, err := rota.NewSession(&cfg, st, st, rota.WithNotifier(st))
func WithNotifier(notifier types.ChangeNotifier) Option {
	return func(o *sessionOptions) {
		o.notifier = notifier
	}
}

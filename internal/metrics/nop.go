// Package metrics provides MetricsCollector implementations for the rota
// library: a no-op collector used by default and a Prometheus-backed one.
package metrics

import "github.com/lunavale/rota/types"

// NopMetrics is a MetricsCollector that discards all measurements.
//
// Used when no collector is configured, so instrumentation call sites never
// need nil checks.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// IncrementAssignments discards the measurement.
func (n *NopMetrics) IncrementAssignments(_ /* documents */ int) {}

// IncrementUndo discards the measurement.
func (n *NopMetrics) IncrementUndo(_ /* result */ string) {}

// SetCursorPosition discards the measurement.
func (n *NopMetrics) SetCursorPosition(_ /* value */ int) {}

// SetRosterSize discards the measurement.
func (n *NopMetrics) SetRosterSize(_ /* size */ int) {}

// IncrementRosterReplacements discards the measurement.
func (n *NopMetrics) IncrementRosterReplacements() {}

// IncrementStoreFailure discards the measurement.
func (n *NopMetrics) IncrementStoreFailure(_ /* op */ string) {}

// ObserveAssignLatency discards the measurement.
func (n *NopMetrics) ObserveAssignLatency(_ /* seconds */ float64) {}

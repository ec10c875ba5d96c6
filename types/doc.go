// Package types defines the shared types, interfaces, and sentinel errors
// used across the rota library.
//
// It exists as a separate package so that internal packages can depend on
// these definitions without importing the root rota package, avoiding import
// cycles. The root package re-exports the common definitions via type aliases
// for convenient access.
package types

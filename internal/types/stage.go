// Package types provides type definitions for structured data used throughout the docdna system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// StageResult is the outcome of one analyzer stage. A degraded result carries a
// partial or default value plus the reason the stage could not complete.
type StageResult[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

// Ok wraps a successful stage value
func Ok[T any](v T) StageResult[T] {
	return StageResult[T]{Value: v}
}

// Degrade wraps a fallback value together with the failure reason
func Degrade[T any](v T, reason string) StageResult[T] {
	return StageResult[T]{Value: v, Degraded: true, Reason: reason}
}

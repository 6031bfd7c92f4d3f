// Package goAccount provides the authentication core of an account
// service: token lifecycle management, deterministic feature sampling,
// policy-gated signin risk evaluation, signin unblock codes, and device
// registry orchestration over caller-supplied collaborators.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Policy gates can be swapped
// at runtime via [Engine.ReloadPolicy] without pausing evaluation.
//
// # Architecture boundaries
//
// goAccount is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (SigninDecision, DeviceRecord,
// MetricsSnapshot, etc.). Pure evaluation lives in the leaf packages
// token, sampling, and policy; the root package orchestrates them over
// the collaborator interfaces.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or encoding details in its
//     public API.
//   - Retry collaborator calls; retry policy belongs to the
//     collaborators themselves.
//   - Emit any notification before the backing store write has
//     succeeded.
package goAccount

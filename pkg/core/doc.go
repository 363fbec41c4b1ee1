// Package core provides the fundamental types and interfaces for the jobs package.
//
// This package contains:
//   - Job (broker invocation), StatusRecord (result store entry) and WorkerInfo models with GORM annotations
//   - The closed set of job kinds and their argument types
//   - Broker, ResultStore and WorkerRegistry interfaces
//   - Event types for job monitoring
//   - Error types for submission and inspection
//
// Most users should import the root package github.com/jdziat/portfolio-jobs
// instead of this package directly.
package core

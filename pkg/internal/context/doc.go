// Package context provides internal context helpers for job execution.
//
// This package is internal and should not be imported directly; handlers
// use pkg/jobctx.
package context

// Package security provides validation, sanitization, and limits for the jobs package.
//
// This package includes:
//   - Input validation for job names, queue names and argument sizes
//   - Error message sanitization before failures reach the result store
//   - Clamping functions for worker concurrency and time limits
//
// Most users should import the root package github.com/jdziat/portfolio-jobs
// which re-exports these functions.
package security

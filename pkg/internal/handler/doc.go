// Package handler provides internal typed handler execution.
//
// This package is internal and should not be imported directly; handlers
// are registered through pkg/registry.
package handler

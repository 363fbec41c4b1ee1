// Package security provides validation, sanitization, and limits for the jobs package.
package security

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// Limits applied to submissions and worker configuration
const (
	// MaxJobNameLength is the maximum length for job names
	MaxJobNameLength = 255

	// MaxJobArgsSize is the maximum size in bytes for encoded job arguments (1MB)
	MaxJobArgsSize = 1 << 20

	// MaxConcurrency is the hard limit for worker concurrency
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxQueueNameLength is the maximum length for queue names
	MaxQueueNameLength = 255

	// MaxUniqueKeyLength is the maximum length for unique keys
	MaxUniqueKeyLength = 255

	// MinTimeLimit is the shortest soft or hard time limit a worker accepts
	MinTimeLimit = time.Second
)

// validName matches alphanumeric, hyphens, underscores, and dots
var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateJobName validates the shape of a job name before it is resolved
// to a kind.
func ValidateJobName(name string) error {
	if name == "" {
		return core.ErrInvalidJobName
	}
	if len(name) > MaxJobNameLength {
		return core.ErrJobNameTooLong
	}
	if !validName.MatchString(name) {
		return core.ErrInvalidJobName
	}
	return nil
}

// ValidateQueueName validates a queue name
func ValidateQueueName(name string) error {
	if name == "" {
		return core.ErrInvalidQueueName
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if !validName.MatchString(name) {
		return core.ErrInvalidQueueName
	}
	return nil
}

// ValidateArgsSize rejects encoded arguments above MaxJobArgsSize.
func ValidateArgsSize(encoded []byte) error {
	if len(encoded) > MaxJobArgsSize {
		return core.ErrJobArgsTooLarge
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Drop control characters other than whitespace
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampConcurrency ensures concurrency is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// ClampTimeLimits returns soft and hard limits with soft <= hard and both
// at least MinTimeLimit. A zero soft limit defaults to the hard limit.
func ClampTimeLimits(soft, hard time.Duration) (time.Duration, time.Duration) {
	if hard < MinTimeLimit {
		hard = MinTimeLimit
	}
	if soft <= 0 || soft > hard {
		soft = hard
	}
	if soft < MinTimeLimit {
		soft = MinTimeLimit
	}
	return soft, hard
}

// ValidateUniqueKey validates a unique key length
func ValidateUniqueKey(key string) error {
	if len(key) > MaxUniqueKeyLength {
		return core.ErrUniqueKeyTooLong
	}
	return nil
}

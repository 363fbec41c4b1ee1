// Package manager provides the job facade: the single entry point through
// which submitters, the scheduler and the CLI submit, inspect and cancel jobs.
//
// The manager never executes a handler. Submission writes one broker row
// and returns; status is read from the result store; inspection failures are
// reported in the returned structs instead of as errors.
package manager

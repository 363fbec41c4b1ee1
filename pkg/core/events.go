package core

import "time"

// Event is the interface for all job events.
type Event interface {
	eventMarker()
}

// JobStarted is emitted when a worker claims a job.
type JobStarted struct {
	Job       *Job
	WorkerID  string
	Timestamp time.Time
}

func (*JobStarted) eventMarker() {}

// JobProgressed is emitted each time a handler reports progress.
type JobProgressed struct {
	JobID     string
	Progress  Progress
	Timestamp time.Time
}

func (*JobProgressed) eventMarker() {}

// JobSucceeded is emitted when a job finishes in SUCCESS.
type JobSucceeded struct {
	Job       *Job
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobSucceeded) eventMarker() {}

// JobFailed is emitted when a job finishes in FAILURE.
type JobFailed struct {
	Job       *Job
	Error     error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// JobRevoked is emitted when a job finishes in REVOKED.
type JobRevoked struct {
	JobID     string
	Timestamp time.Time
}

func (*JobRevoked) eventMarker() {}

// JobSubmitted is emitted by the manager after a job reaches the broker.
type JobSubmitted struct {
	Job       *Job
	Timestamp time.Time
}

func (*JobSubmitted) eventMarker() {}

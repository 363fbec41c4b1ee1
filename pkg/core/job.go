// Package core provides the domain models and interfaces for the jobs package.
package core

import (
	"encoding/json"
	"time"
)

// JobStatus is the delivery state of a job on the broker.
// It is distinct from State, which is the externally visible lifecycle
// held by the result store.
type JobStatus string

const (
	StatusQueued  JobStatus = "queued"  // Waiting for a worker
	StatusClaimed JobStatus = "claimed" // Locked by a worker and executing
	StatusAcked   JobStatus = "acked"   // Finished, outcome written to the result store
	StatusRevoked JobStatus = "revoked" // Cancelled before a worker claimed it
)

// Job is a job invocation as carried by the broker.
// Kind, Args and SubmittedAt never change after submission.
type Job struct {
	ID              string          `gorm:"primaryKey;size:36"`
	Kind            Kind            `gorm:"index;size:255;not null"`
	Args            json.RawMessage `gorm:"type:bytes"`
	Queue           string          `gorm:"index;size:255;default:'default'"`
	Status          JobStatus       `gorm:"index;size:20;default:'queued'"`
	RevokeRequested bool            `gorm:"default:false"`
	LockedBy        string          `gorm:"index;size:255"`
	LockedUntil     *time.Time      `gorm:"index"`
	UniqueKey       string          `gorm:"index;size:255"`
	SubmittedAt     time.Time       `gorm:"index;autoCreateTime"`
	StartedAt       *time.Time
	FinishedAt      *time.Time `gorm:"index"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

// Progress is the latest progress payload reported by a running handler.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status,omitempty"`
}

// StatusRecord is the result store entry for a job. It is written only by
// the worker executing the job (or by the manager when revoking a job that
// was never claimed).
type StatusRecord struct {
	JobID     string          `gorm:"primaryKey;size:36" json:"job_id"`
	Kind      Kind            `gorm:"size:255" json:"kind"`
	State     State           `gorm:"index;size:20;not null" json:"state"`
	Progress  *Progress       `gorm:"serializer:json" json:"progress,omitempty"`
	Result    json.RawMessage `gorm:"type:bytes" json:"result,omitempty"`
	Error     string          `gorm:"type:text" json:"error,omitempty"`
	WorkerID  string          `gorm:"size:255" json:"worker_id,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt *time.Time      `gorm:"index" json:"expires_at,omitempty"`
}

// TableName keeps the result table name stable across renames of the type.
func (StatusRecord) TableName() string { return "job_results" }

// WorkerInfo is a worker's heartbeat row. Worker stats are derived from it.
type WorkerInfo struct {
	ID          string    `gorm:"primaryKey;size:255"`
	Hostname    string    `gorm:"size:255"`
	PID         int
	Concurrency int
	Active      int
	Processed   int64
	StartedAt   time.Time
	LastSeenAt  time.Time `gorm:"index"`
}

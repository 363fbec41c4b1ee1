package tasks

import "github.com/jdziat/portfolio-jobs/pkg/security"

// ItemFailure records why one batch item failed.
type ItemFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Outcome accumulates per-item results of a batch.
type Outcome[T any] struct {
	Succeeded []T
	Failed    []ItemFailure
}

// Ok records a successful item.
func (o *Outcome[T]) Ok(v T) {
	o.Succeeded = append(o.Succeeded, v)
}

// Fail records a failed item.
func (o *Outcome[T]) Fail(id string, err error) {
	o.Failed = append(o.Failed, ItemFailure{ID: id, Reason: security.SanitizeErrorMessage(err.Error())})
}

// FailedIDs returns the ids of failed items in the order they failed.
func (o *Outcome[T]) FailedIDs() []string {
	ids := make([]string, 0, len(o.Failed))
	for _, f := range o.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

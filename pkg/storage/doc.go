// Package storage provides the GORM-backed broker, result store and worker
// registry.
//
// A single GormStorage value satisfies core.Broker, core.ResultStore and
// core.WorkerRegistry. Deployments that keep status records in Redis pair
// it with pkg/resultstore instead of using its ResultStore half.
//
// Status records are written monotonically: PENDING, then PROGRESS, then
// exactly one of SUCCESS, FAILURE or REVOKED. Once terminal, a record is
// never rewritten; it expires after the configured retention.
package storage

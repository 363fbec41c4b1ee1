// Package schedule provides recurring schedules and the Scheduler that
// submits jobs when they come due.
//
// This package includes:
//   - Schedule interface for defining job schedules
//   - Every() for fixed-interval schedules
//   - Daily() and Weekly() for wall-clock schedules
//   - Cron() and ParseCron() for cron expressions
//   - Scheduler, which evaluates a static table of entries once per minute
//
// Most users should import the root package github.com/jdziat/portfolio-jobs
// which re-exports these functions.
package schedule

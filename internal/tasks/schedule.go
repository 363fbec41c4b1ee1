package tasks

import (
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/schedule"
)

// ScheduleTable is the fixed set of recurring jobs, evaluated in the
// market's time zone. The two price rules overlap on the hour during
// market hours and both fire unless skipIfActive is set.
func ScheduleTable(skipIfActive bool) []schedule.Entry {
	return []schedule.Entry{
		{
			Name:         "update-prices-market-hours",
			Schedule:     schedule.Cron("0 9-16 * * 1-5"),
			Args:         core.UpdatePricesArgs{},
			SkipIfActive: skipIfActive,
		},
		{
			Name:         "update-prices-extended-hours",
			Schedule:     schedule.Cron("*/30 4-20 * * 1-5"),
			Args:         core.UpdatePricesArgs{},
			SkipIfActive: skipIfActive,
		},
		{
			Name:         "daily-snapshot",
			Schedule:     schedule.Cron("30 16 * * 1-5"),
			Args:         core.CreateSnapshotArgs{},
			SkipIfActive: skipIfActive,
		},
		{
			// Runs the snapshot job again on Sunday night; there is no
			// separate weekly job.
			Name:         "weekly-snapshot",
			Schedule:     schedule.Cron("0 2 * * 0"),
			Args:         core.CreateSnapshotArgs{},
			SkipIfActive: skipIfActive,
		},
	}
}

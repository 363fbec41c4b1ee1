package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/schedule"
)

func TestScheduleTable(t *testing.T) {
	entries := ScheduleTable(false)
	require.Len(t, entries, 4)

	kinds := map[string]core.Kind{}
	for _, e := range entries {
		kinds[e.Name] = e.Args.Kind()
		assert.False(t, e.SkipIfActive)
	}
	assert.Equal(t, map[string]core.Kind{
		"update-prices-market-hours":   core.KindUpdatePrices,
		"update-prices-extended-hours": core.KindUpdatePrices,
		"daily-snapshot":               core.KindCreateSnapshot,
		"weekly-snapshot":              core.KindCreateSnapshot,
	}, kinds)

	for _, e := range ScheduleTable(true) {
		assert.True(t, e.SkipIfActive)
	}
}

func TestScheduleTable_FireTimes(t *testing.T) {
	edt := time.FixedZone("EDT", -4*3600)
	byName := map[string]schedule.Schedule{}
	for _, e := range ScheduleTable(false) {
		byName[e.Name] = e.Schedule
	}

	friday := time.Date(2024, 6, 7, 16, 5, 0, 0, edt)
	assert.WithinDuration(t, time.Date(2024, 6, 7, 16, 30, 0, 0, edt), byName["daily-snapshot"].Next(friday), 0)
	assert.WithinDuration(t, time.Date(2024, 6, 9, 2, 0, 0, 0, edt), byName["weekly-snapshot"].Next(friday), 0)
	assert.WithinDuration(t, time.Date(2024, 6, 7, 16, 30, 0, 0, edt), byName["update-prices-extended-hours"].Next(friday), 0)
	assert.WithinDuration(t, time.Date(2024, 6, 10, 9, 0, 0, 0, edt), byName["update-prices-market-hours"].Next(friday), 0,
		"no market-hours update after 16:00 or on weekends")
}

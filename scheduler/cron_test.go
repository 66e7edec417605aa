package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/lao-engine/scheduler"
)

func TestValidateCronAcceptsStandardExpressions(t *testing.T) {
	assert.NoError(t, scheduler.ValidateCron("* * * * *"))
	assert.NoError(t, scheduler.ValidateCron("0 0 * * *"))
	assert.NoError(t, scheduler.ValidateCron("*/15 * * * *"))
	assert.NoError(t, scheduler.ValidateCron("0-30 1-5 1,15 1-6 1-5"))
}

func TestValidateCronRejectsBadExpressions(t *testing.T) {
	assert.Error(t, scheduler.ValidateCron("* * *"))
	assert.Error(t, scheduler.ValidateCron("60 * * * *"))
	assert.Error(t, scheduler.ValidateCron("* 24 * * *"))
	assert.Error(t, scheduler.ValidateCron("*/0 * * * *"))
}

func TestValidateScheduleAcceptsCompactGrammar(t *testing.T) {
	assert.NoError(t, scheduler.ValidateSchedule("interval:5"))
	assert.NoError(t, scheduler.ValidateSchedule("daily:09:30"))
	assert.NoError(t, scheduler.ValidateSchedule("weekly:monday:09:30"))
	assert.NoError(t, scheduler.ValidateSchedule("0 0 * * *"))
}

func TestValidateScheduleRejectsGarbage(t *testing.T) {
	assert.Error(t, scheduler.ValidateSchedule("not-a-schedule"))
}

func TestDefaultNextRunInterval(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	next, err := scheduler.DefaultNextRun("interval:30", from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(30*time.Minute), next)
}

func TestDefaultNextRunDailyFutureToday(t *testing.T) {
	from := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	next, err := scheduler.DefaultNextRun("daily:09:30", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC), next)
}

func TestDefaultNextRunDailyRollsToTomorrow(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	next, err := scheduler.DefaultNextRun("daily:09:30", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC), next)
}

func TestDefaultNextRunWeekly(t *testing.T) {
	// 2026-01-01 is a Thursday.
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	next, err := scheduler.DefaultNextRun("weekly:monday:09:00", from)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.True(t, next.After(from))
}

func TestDefaultNextRunFallsBackToCron(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)
	next, err := scheduler.DefaultNextRun("0 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), next)
}

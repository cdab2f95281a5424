package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduleRejectsEmptySpec(t *testing.T) {
	s := New()
	require.Error(t, s.Schedule("", func() {}))
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	s := New()
	require.Error(t, s.Schedule("not a cron line", func() {}))
}

func TestScheduleAcceptsStandardSpec(t *testing.T) {
	s := New()
	require.NoError(t, s.Schedule("0 6 * * *", func() {}))
}

func TestRescheduleReplacesEntry(t *testing.T) {
	s := New()
	require.NoError(t, s.Schedule("0 6 * * *", func() {}))
	require.NoError(t, s.Schedule("30 7 * * *", func() {}))
	require.Len(t, s.cron.Entries(), 1)
}

func TestStartStopIdempotent(t *testing.T) {
	s := New()
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

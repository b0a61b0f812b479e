package chrono

import (
	"errors"
	"fedgrants-backend/internal/telemetry"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedTime(t *testing.T) {
	instant := time.Date(2020, time.March, 4, 0, 0, 0, 0, time.UTC)
	require.Equal(t, instant, FixedTime(instant).Now())
	require.Equal(t, time.UTC, NewStandardTime().Now().Location())
}

func TestCronSchedule(t *testing.T) {
	c := NewStandardCron(&telemetry.RecorderAPI{})
	require.NoError(t, c.Cron("0 3 * * *", func() {}))
	require.NoError(t, c.Cron("@every 1h", func() {}))
	require.Error(t, c.Cron("not a schedule", func() {}))
}

func TestCronRuns(t *testing.T) {
	c := NewStandardCron(&telemetry.RecorderAPI{})
	ran := make(chan struct{}, 1)
	require.NoError(t, c.Cron("@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))
	c.Start()
	defer c.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestCronLogger(t *testing.T) {
	tel := &telemetry.RecorderAPI{}
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}

	logger.Info("schedule", "entry", 1, "next", "soon")
	debug := tel.Find("debug", "cron: schedule")
	require.Len(t, debug, 1)
	require.Equal(t, []any{"entry: 1", "next: soon"}, debug[0].Params)

	logger.Error(errors.New("boom"), "panic", "entry", 2)
	broken := tel.Find("broken", "cron.job")
	require.Len(t, broken, 1)
	require.Equal(t, "entry: 2", broken[0].Params[1])
}

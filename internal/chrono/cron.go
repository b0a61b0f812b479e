package chrono

import (
	"fedgrants-backend/internal/telemetry"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronAPI is the interface that anything depending on things to happen on a schedule should use.
type CronAPI interface {
	Cron(schedule string, callback func()) error
}

// StandardCron is the standard implementation of CronAPI using `github.com/robfig/cron/v3`,
// schedules are read in UTC.
type StandardCron struct {
	cron *cron.Cron
}

func NewStandardCron(tel telemetry.API) StandardCron {
	tel = telemetry.NewScopedAPI("cron", telemetry.OrDefault(tel))
	return StandardCron{
		cron: cron.New(
			cron.WithLogger(cronLogger{tel: tel}),
			cron.WithLocation(time.UTC),
		),
	}
}

func (s StandardCron) Cron(schedule string, callback func()) error {
	_, err := s.cron.AddFunc(schedule, callback)
	if err != nil {
		return fmt.Errorf("schedule '%s': %w", schedule, err)
	}
	return nil
}

func (s StandardCron) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to return.
func (s StandardCron) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	tel telemetry.API
}

func formatParams(keysAndValues []any) []any {
	params := make([]any, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[i], keysAndValues[i+1]))
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken("job", append([]any{fmt.Errorf("%s: %w", msg, err)}, formatParams(keysAndValues)...)...)
}

package pipeline

import (
	"context"
	"fmt"

	"cmc_performance/utils"

	"github.com/robfig/cron/v3"
)

// cronLogger routes cron's own messages to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	utils.Logger.Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	utils.Error(err, msg, keysAndValues...)
}

// Schedule runs the pipeline on a standard cron spec until ctx is done. A
// run still in progress when the next one is due causes that tick to be
// skipped. Failed runs are logged and the schedule continues.
func (p *Pipeline) Schedule(ctx context.Context, spec string) error {
	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)

	if _, err := c.AddFunc(spec, func() {
		if err := p.Run(ctx); err != nil {
			utils.Error(err, "Scheduled run failed", "schedule", spec)
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	utils.Logger.Infow("Scheduler started", "schedule", spec, "next_run", c.Entries()[0].Next)

	<-ctx.Done()
	utils.Logger.Infow("Scheduler stopping, waiting for the current run")
	<-c.Stop().Done()
	return nil
}

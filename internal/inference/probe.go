package inference

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// Probe periodically pings the runner on a cron schedule and logs state
// transitions between healthy and unreachable. It blocks until ctx is
// cancelled.
func Probe(ctx context.Context, client *Client, schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return errors.New("inference: invalid probe schedule " + schedule)
	}

	healthy := true // startup already verified the runner
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(nextCronDuration(schedule)):
		}

		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := client.Health(probeCtx)
		cancel()

		switch {
		case err != nil && healthy:
			healthy = false
			log.Printf("inference: runner became unreachable: %v", err)
		case err == nil && !healthy:
			healthy = true
			log.Printf("inference: runner recovered")
		}
	}
}

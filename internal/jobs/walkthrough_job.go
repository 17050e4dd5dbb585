package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WalkthroughJobName is the name of the scheduled walkthrough job
const WalkthroughJobName = "walkthrough"

// StepRunner runs walkthrough steps in order
type StepRunner interface {
	Run(ctx context.Context, steps ...string) error
}

// WalkthroughJob reruns selected walkthrough steps on a schedule
type WalkthroughJob struct {
	runner  StepRunner
	steps   []string
	logger  *zap.Logger
	timeout time.Duration
}

// NewWalkthroughJob creates a job running steps through runner.
// The timeout bounds a single run.
func NewWalkthroughJob(runner StepRunner, steps []string, logger *zap.Logger, timeout time.Duration) *WalkthroughJob {
	return &WalkthroughJob{
		runner:  runner,
		steps:   steps,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes the job once. Failures are logged; the next tick runs again.
func (j *WalkthroughJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting walkthrough job", zap.Strings("steps", j.steps))

	if err := j.runner.Run(ctx, j.steps...); err != nil {
		j.logger.Error("walkthrough job failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("walkthrough job completed",
		zap.Duration("duration", time.Since(start)))
}

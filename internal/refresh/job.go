package refresh

import (
	"context"

	"github.com/angelmondragon/basketcase/internal/cron"
)

// JobName labels the weekly refresh in markers, locks and metrics.
const JobName = "price-refresh"

type job struct {
	svc *Service
}

// NewJob adapts the service to the cron runtime.
func NewJob(svc *Service) cron.Job {
	return &job{svc: svc}
}

func (j *job) Name() string { return JobName }

func (j *job) Run(ctx context.Context) error {
	_, err := j.svc.Run(ctx)
	return err
}

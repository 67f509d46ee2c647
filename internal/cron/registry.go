package cron

import "context"

// Job is one scheduled task. Name doubles as the marker and lock label.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs the service polls, in registration order.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with jobs; nil entries are dropped.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists job names for startup logging.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}

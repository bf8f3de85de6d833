package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"taskmaster/internal/queue"
)

type Handler interface {
	Handle(ctx context.Context, payload []byte) error
}

type HandlerFunc func(ctx context.Context, payload []byte) error

func (f HandlerFunc) Handle(ctx context.Context, payload []byte) error { return f(ctx, payload) }

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job is parked as failed.
func Permanent(err error) error { return permanentError{err: err} }

type Pool struct {
	repo      queue.Repository
	handlers  map[string]Handler
	sem       chan struct{}
	stop      chan struct{}
	pollEvery time.Duration
	lease     time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewPool(repo queue.Repository, handlers map[string]Handler, size int, pollEvery, lease time.Duration) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		repo:      repo,
		handlers:  handlers,
		sem:       make(chan struct{}, size),
		stop:      make(chan struct{}),
		pollEvery: pollEvery,
		lease:     lease,
		now:       time.Now,
	}
}

// Run polls for due jobs until ctx is done or Stop is called, then waits
// for in-flight jobs.
func (p *Pool) Run(ctx context.Context) {
	t := time.NewTicker(p.pollEvery)
	defer t.Stop()
	defer p.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-t.C:
			p.Tick(ctx, p.now())
		}
	}
}

func (p *Pool) Stop() { close(p.stop) }

// Tick leases every job due at now and starts it. It returns the number of
// jobs started.
func (p *Pool) Tick(ctx context.Context, now time.Time) int {
	started := 0
	for {
		job, err := p.repo.LeaseNext(ctx, now, p.lease)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				log.Error().Err(err).Msg("lease job")
			}
			return started
		}
		p.sem <- struct{}{}
		p.wg.Add(1)
		started++
		go func(j queue.Job) {
			defer p.wg.Done()
			defer func() { <-p.sem }()
			p.run(ctx, j)
		}(job)
	}
}

// Wait blocks until every started job has finished.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, j queue.Job) {
	l := log.With().Str("job_id", j.ID).Str("tag", j.Tag).Str("kind", j.Kind).Logger()
	h, ok := p.handlers[j.Kind]
	if !ok {
		l.Error().Msg("no handler for job kind")
		_ = p.repo.Fail(ctx, j.ID, "no handler", p.now())
		return
	}
	c, cancel := context.WithTimeout(ctx, p.lease)
	defer cancel()
	err := h.Handle(c, j.Payload)
	var perm permanentError
	switch {
	case err == nil:
		if err := p.repo.Complete(ctx, j.ID); err != nil {
			l.Error().Err(err).Msg("complete job")
		}
	case errors.As(err, &perm):
		l.Error().Err(err).Msg("job failed permanently")
		_ = p.repo.Fail(ctx, j.ID, err.Error(), p.now())
	default:
		next := backoffExp(j.Attempts + 1)
		l.Warn().Err(err).Int("attempt", j.Attempts+1).Dur("retry_in", next).Msg("job failed")
		_ = p.repo.Retry(ctx, j.ID, err.Error(), p.now(), next)
	}
}

func backoffExp(attempts int) time.Duration {
	if attempts <= 0 {
		return time.Second
	}
	if attempts > 7 {
		return 60 * time.Second
	}
	d := 1 << (attempts - 1) // 1,2,4,8...
	if d > 60 {
		d = 60
	}
	return time.Duration(d) * time.Second
}

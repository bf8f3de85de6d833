// Package service is the single entry point for task mutations. It keeps
// each task's pending reminder consistent with the stored record.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"taskmaster/internal/domain"
)

type Store interface {
	Insert(ctx context.Context, t domain.Task) (domain.Task, error)
	Update(ctx context.Context, t domain.Task) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (domain.Task, error)
	List(ctx context.Context, p domain.Projection) ([]domain.Task, error)
	Observe(ctx context.Context, p domain.Projection) <-chan []domain.Task
	Categories(ctx context.Context) ([]string, error)
}

type Reminders interface {
	Schedule(ctx context.Context, t domain.Task) (bool, error)
	Cancel(ctx context.Context, taskID int64) error
	Pending(ctx context.Context) ([]int64, error)
}

type Service struct {
	store     Store
	reminders Reminders
	locks     keyedMutex
}

func New(store Store, reminders Reminders) *Service {
	return &Service{store: store, reminders: reminders, locks: keyedMutex{held: map[int64]*lockEntry{}}}
}

// InsertTask stores t and schedules its reminder. The task stays stored
// when scheduling fails; that failure is logged, not returned.
func (s *Service) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	t, err := s.store.Insert(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	if !t.NotificationLeadTime.Enabled() {
		return t, nil
	}
	unlock := s.locks.lock(t.ID)
	defer unlock()
	s.schedule(ctx, t)
	return t, nil
}

// UpdateTask replaces the stored record. A reminder pending under the
// previous record is always cancelled before the write and a new one is
// scheduled from t afterwards, even when nothing relevant changed.
func (s *Service) UpdateTask(ctx context.Context, t domain.Task) error {
	unlock := s.locks.lock(t.ID)
	defer unlock()
	return s.update(ctx, t)
}

// update runs UpdateTask with the lock for t.ID held.
func (s *Service) update(ctx context.Context, t domain.Task) error {
	prev, err := s.store.Get(ctx, t.ID)
	if err != nil {
		return err
	}
	if prev.NotificationLeadTime.Enabled() {
		if err := s.reminders.Cancel(ctx, t.ID); err != nil {
			return err
		}
	}
	if err := s.store.Update(ctx, t); err != nil {
		return err
	}
	if t.NotificationLeadTime.Enabled() {
		s.schedule(ctx, t)
	}
	return nil
}

// DeleteTask cancels the reminder of t, then removes it.
func (s *Service) DeleteTask(ctx context.Context, t domain.Task) error {
	unlock := s.locks.lock(t.ID)
	defer unlock()
	return s.remove(ctx, t)
}

func (s *Service) remove(ctx context.Context, t domain.Task) error {
	if t.NotificationLeadTime.Enabled() {
		if err := s.reminders.Cancel(ctx, t.ID); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, t.ID)
}

// DeleteByID deletes the task as currently stored. The read happens under
// the task's lock so a concurrent update cannot leave its reminder behind.
func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	unlock := s.locks.lock(id)
	defer unlock()
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, t)
}

// SetCompleted flips the completion flag of the stored record.
func (s *Service) SetCompleted(ctx context.Context, id int64, done bool) (domain.Task, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t.IsCompleted = done
	if err := s.update(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// Reconcile re-derives the reminder of every stored task and cancels
// reminders whose task no longer exists, repairing drift left by a crash
// between a store write and its scheduling call.
func (s *Service) Reconcile(ctx context.Context) (scheduled int, err error) {
	tasks, err := s.store.List(ctx, domain.ProjectionAll)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}
	for _, t := range tasks {
		ok, err := s.reconcileOne(ctx, t)
		if err != nil {
			return scheduled, fmt.Errorf("reconcile task %d: %w", t.ID, err)
		}
		if ok {
			scheduled++
		}
	}

	pending, err := s.reminders.Pending(ctx)
	if err != nil {
		return scheduled, fmt.Errorf("reconcile: %w", err)
	}
	orphans := 0
	for _, id := range pending {
		removed, err := s.dropOrphan(ctx, id)
		if err != nil {
			return scheduled, fmt.Errorf("reconcile task %d: %w", id, err)
		}
		if removed {
			orphans++
		}
	}
	log.Info().Int("tasks", len(tasks)).Int("reminders", scheduled).Int("orphans", orphans).Msg("reminders reconciled")
	return scheduled, nil
}

func (s *Service) reconcileOne(ctx context.Context, t domain.Task) (bool, error) {
	unlock := s.locks.lock(t.ID)
	defer unlock()
	ok, err := s.reminders.Schedule(ctx, t)
	if err != nil || ok {
		return ok, err
	}
	return false, s.reminders.Cancel(ctx, t.ID)
}

// dropOrphan cancels the reminder of id when the task is gone.
func (s *Service) dropOrphan(ctx context.Context, id int64) (bool, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	_, err := s.store.Get(ctx, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	log.Warn().Int64("task_id", id).Msg("cancelling reminder of deleted task")
	return true, s.reminders.Cancel(ctx, id)
}

func (s *Service) schedule(ctx context.Context, t domain.Task) {
	if _, err := s.reminders.Schedule(ctx, t); err != nil {
		log.Warn().Err(err).Int64("task_id", t.ID).Msg("task saved but reminder not scheduled")
	}
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Task, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, p domain.Projection) ([]domain.Task, error) {
	return s.store.List(ctx, p)
}

func (s *Service) Observe(ctx context.Context, p domain.Projection) <-chan []domain.Task {
	return s.store.Observe(ctx, p)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

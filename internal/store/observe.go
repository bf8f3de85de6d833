package store

import (
	"context"

	"github.com/rs/zerolog/log"
	"taskmaster/internal/domain"
)

type subscriber struct {
	dirty chan struct{}
}

// Observe streams snapshots of projection p. The current snapshot is sent
// first, then a recomputed one after every mutation. Pending changes are
// coalesced while the reader is busy, so each snapshot reflects the store
// at the moment it was read. The channel closes when ctx is done.
func (s *Store) Observe(ctx context.Context, p domain.Projection) <-chan []domain.Task {
	out := make(chan []domain.Task)
	sub := &subscriber{dirty: make(chan struct{}, 1)}
	sub.dirty <- struct{}{}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.dirty:
			}
			tasks, err := s.List(ctx, p)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Str("projection", p.String()).Msg("snapshot query failed")
				continue
			}
			select {
			case out <- tasks:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Store) changed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.dirty <- struct{}{}:
		default:
		}
	}
}

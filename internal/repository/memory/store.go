// Package memory is an in-process implementation of the repository
// interfaces. Transactions hold a store-wide lock and are rolled back by
// restoring a snapshot, which makes them serializable.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository"
)

type txKey struct{}

type Store struct {
	mu sync.Mutex

	users        map[int]domain.User
	spots        map[int]domain.Spot
	reservations map[int]domain.Reservation
	nextID       int

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[int]domain.User),
		spots:        make(map[int]domain.Spot),
		reservations: make(map[int]domain.Reservation),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() repository.UserRepository               { return &userRepository{s} }
func (s *Store) Spots() repository.SpotRepository               { return &spotRepository{s} }
func (s *Store) Reservations() repository.ReservationRepository { return &reservationRepository{s} }
func (s *Store) TxManager() repository.TxManager                { return &txManager{s} }

// lock acquires the store lock unless ctx already belongs to a transaction
// holding it. The returned func releases what was acquired.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

type snapshot struct {
	users        map[int]domain.User
	spots        map[int]domain.Spot
	reservations map[int]domain.Reservation
	nextID       int
}

type txManager struct {
	s *Store
}

func (m *txManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s := m.s
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		users:        maps.Clone(s.users),
		spots:        maps.Clone(s.spots),
		reservations: maps.Clone(s.reservations),
		nextID:       s.nextID,
	}
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.users, s.spots, s.reservations, s.nextID = snap.users, snap.spots, snap.reservations, snap.nextID
		return err
	}
	return nil
}

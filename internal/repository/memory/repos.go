package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository"
)

type userRepository struct{ s *Store }

func (r *userRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return nil, fmt.Errorf("%w: username %q", repository.ErrDuplicateEntry, user.Username)
		}
	}
	user.ID = r.s.id()
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepository) UpdateUsername(ctx context.Context, id int, username string) (*domain.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, other := range r.s.users {
		if other.ID != id && other.Username == username {
			return nil, fmt.Errorf("%w: username %q", repository.ErrDuplicateEntry, username)
		}
	}
	u.Username = username
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return &u, nil
}

type spotRepository struct{ s *Store }

func (r *spotRepository) Create(ctx context.Context, spot *domain.Spot) (*domain.Spot, error) {
	defer r.s.lock(ctx)()
	spot.ID = r.s.id()
	spot.CreatedAt = r.s.now()
	spot.UpdatedAt = spot.CreatedAt
	r.s.spots[spot.ID] = *spot
	return spot, nil
}

func (r *spotRepository) FindByID(ctx context.Context, id int) (*domain.Spot, error) {
	defer r.s.lock(ctx)()
	spot, ok := r.s.spots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &spot, nil
}

// FindByIDForUpdate needs no row lock: transactions already hold the store lock.
func (r *spotRepository) FindByIDForUpdate(ctx context.Context, id int) (*domain.Spot, error) {
	return r.FindByID(ctx, id)
}

func (r *spotRepository) FindAll(ctx context.Context) ([]domain.Spot, error) {
	defer r.s.lock(ctx)()
	spots := make([]domain.Spot, 0, len(r.s.spots))
	for _, spot := range r.s.spots {
		spots = append(spots, spot)
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].Name != spots[j].Name {
			return spots[i].Name < spots[j].Name
		}
		return spots[i].ID < spots[j].ID
	})
	return spots, nil
}

func (r *spotRepository) Update(ctx context.Context, spot *domain.Spot) (*domain.Spot, error) {
	defer r.s.lock(ctx)()
	existing, ok := r.s.spots[spot.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	spot.CreatedAt = existing.CreatedAt
	spot.CreatedBy = existing.CreatedBy
	spot.UpdatedAt = r.s.now()
	r.s.spots[spot.ID] = *spot
	return spot, nil
}

func (r *spotRepository) UpdateAvailability(ctx context.Context, id int, availability domain.Availability) error {
	defer r.s.lock(ctx)()
	spot, ok := r.s.spots[id]
	if !ok {
		return repository.ErrNotFound
	}
	spot.StandardAvailable = availability.Standard
	spot.EvAvailable = availability.Ev
	spot.UpdatedAt = r.s.now()
	r.s.spots[id] = spot
	return nil
}

func (r *spotRepository) Delete(ctx context.Context, id int) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.spots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.spots, id)
	return nil
}

type reservationRepository struct{ s *Store }

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.reservations {
		if existing.QRToken == res.QRToken {
			return nil, fmt.Errorf("%w: qr token", repository.ErrDuplicateEntry)
		}
		if res.State.IsActive() && existing.UserID == res.UserID && existing.State.IsActive() {
			return nil, fmt.Errorf("%w: active reservation for user %d", repository.ErrDuplicateEntry, res.UserID)
		}
	}
	res.ID = r.s.id()
	r.s.reservations[res.ID] = *res
	return res, nil
}

func (r *reservationRepository) FindByID(ctx context.Context, id int) (*domain.Reservation, error) {
	defer r.s.lock(ctx)()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

func (r *reservationRepository) FindByIDForUpdate(ctx context.Context, id int) (*domain.Reservation, error) {
	return r.FindByID(ctx, id)
}

func (r *reservationRepository) FindByQRToken(ctx context.Context, token string) (*domain.Reservation, error) {
	defer r.s.lock(ctx)()
	for _, res := range r.s.reservations {
		if res.QRToken == token {
			return &res, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *reservationRepository) FindActiveByUser(ctx context.Context, userID int) (*domain.Reservation, error) {
	defer r.s.lock(ctx)()
	for _, res := range r.s.reservations {
		if res.UserID == userID && res.State.IsActive() {
			return &res, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *reservationRepository) FindByUser(ctx context.Context, userID int) ([]domain.Reservation, error) {
	defer r.s.lock(ctx)()
	var out []domain.Reservation
	for _, res := range r.s.reservations {
		if res.UserID == userID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *reservationRepository) CountActiveBySpot(ctx context.Context, spotID int) (domain.ClassCounts, error) {
	defer r.s.lock(ctx)()
	var counts domain.ClassCounts
	for _, res := range r.s.reservations {
		if res.SpotID != spotID || !res.State.IsActive() {
			continue
		}
		if res.SpotClass == domain.ClassEV {
			counts.Ev++
		} else {
			counts.Standard++
		}
	}
	return counts, nil
}

func (r *reservationRepository) Update(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.reservations[res.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	r.s.reservations[res.ID] = *res
	return res, nil
}

func (r *reservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	defer r.s.lock(ctx)()
	var out []domain.Reservation
	for _, res := range r.s.reservations {
		if res.State == domain.StateReserved && res.ExpiresAt.Before(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

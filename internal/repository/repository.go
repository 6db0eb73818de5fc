package repository

import (
	"context"
	"errors"
	"parkease/internal/domain"
	"time"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")

// ErrSerialization is returned when a transaction lost a concurrency
// conflict and every retry attempt was used up. Callers may retry.
var ErrSerialization = errors.New("transaction aborted by concurrent update")

// TxManager runs fn inside one atomic transaction. Repository calls made
// with the context passed to fn take part in that transaction; if fn
// returns an error nothing it wrote is kept.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	// UpdateUsername returns ErrDuplicateEntry when the name is taken.
	UpdateUsername(ctx context.Context, id int, username string) (*domain.User, error)
}

type SpotRepository interface {
	Create(ctx context.Context, spot *domain.Spot) (*domain.Spot, error)
	FindByID(ctx context.Context, id int) (*domain.Spot, error)
	// FindByIDForUpdate locks the spot row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id int) (*domain.Spot, error)
	FindAll(ctx context.Context) ([]domain.Spot, error)
	Update(ctx context.Context, spot *domain.Spot) (*domain.Spot, error)
	UpdateAvailability(ctx context.Context, id int, availability domain.Availability) error
	Delete(ctx context.Context, id int) error
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) (*domain.Reservation, error)
	FindByID(ctx context.Context, id int) (*domain.Reservation, error)
	FindByIDForUpdate(ctx context.Context, id int) (*domain.Reservation, error)
	FindByQRToken(ctx context.Context, token string) (*domain.Reservation, error)
	// FindActiveByUser returns ErrNotFound when the user holds no active reservation.
	FindActiveByUser(ctx context.Context, userID int) (*domain.Reservation, error)
	FindByUser(ctx context.Context, userID int) ([]domain.Reservation, error)
	CountActiveBySpot(ctx context.Context, spotID int) (domain.ClassCounts, error)
	Update(ctx context.Context, reservation *domain.Reservation) (*domain.Reservation, error)
	// FindExpired lists reservations still in StateReserved whose ExpiresAt is before now.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
}

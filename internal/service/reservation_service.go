package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"
)

// EventPublisher delivers committed lifecycle events to realtime consumers.
// Delivery is best-effort; a failed publish never undoes a transition.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ReservationEvent) error
}

// ExpiryScheduler arms a deferred expiry check for a new reservation.
type ExpiryScheduler interface {
	Schedule(reservation domain.Reservation)
}

type ReservationService struct {
	tx           repository.TxManager
	spotRepo     repository.SpotRepository
	reservations repository.ReservationRepository
	reconciler   *Reconciler
	publisher    EventPublisher
	scheduler    ExpiryScheduler
	holdWindow   time.Duration

	now      func() time.Time
	newToken func() string
}

func NewReservationService(
	tx repository.TxManager,
	spotRepo repository.SpotRepository,
	reservations repository.ReservationRepository,
	reconciler *Reconciler,
	publisher EventPublisher,
	holdWindow time.Duration,
) *ReservationService {
	return &ReservationService{
		tx:           tx,
		spotRepo:     spotRepo,
		reservations: reservations,
		reconciler:   reconciler,
		publisher:    publisher,
		holdWindow:   holdWindow,
		now:          func() time.Time { return time.Now().UTC() },
		newToken:     uuid.NewString,
	}
}

// SetScheduler wires the expiry scheduler. It is set after construction
// because the sweeper itself calls back into Expire.
func (s *ReservationService) SetScheduler(scheduler ExpiryScheduler) {
	s.scheduler = scheduler
}

// SetClock replaces the wall clock, for tests.
func (s *ReservationService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ReservationService) HoldWindow() time.Duration { return s.holdWindow }

// Reserve places a hold on one slot of the requested class. The availability
// check, the one-active-per-user check, the insert and the count update run
// in one serializable transaction with the spot row locked.
func (s *ReservationService) Reserve(ctx context.Context, id domain.Identity, dto domain.ReserveDTO) (*domain.Reservation, error) {
	class, err := domain.ParseSpotClass(dto.SpotClass)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSpotClass, dto.SpotClass)
	}

	var created *domain.Reservation
	var avail domain.Availability
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		spot, err := s.spotRepo.FindByIDForUpdate(ctx, dto.SpotID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: spot %d", ErrNotFound, dto.SpotID)
			}
			return err
		}

		current, err := s.reconciler.Derive(ctx, spot)
		if err != nil {
			return err
		}
		free := current.Standard
		if class == domain.ClassEV {
			// EV slots are only offered while charging is enabled.
			free = 0
			if spot.EvChargingEnabled {
				free = current.Ev
			}
		}
		if free <= 0 {
			return fmt.Errorf("%w: spot %d class %s", ErrExhausted, spot.ID, class)
		}

		if _, err := s.reservations.FindActiveByUser(ctx, id.UserID); err == nil {
			return fmt.Errorf("%w: user already holds an active reservation", ErrConflict)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := s.now()
		created, err = s.reservations.Create(ctx, &domain.Reservation{
			SpotID:    spot.ID,
			UserID:    id.UserID,
			SpotClass: class,
			State:     domain.StateReserved,
			QRToken:   s.newToken(),
			CreatedAt: now,
			ExpiresAt: now.Add(s.holdWindow),
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				log.WithError(err).WithField("user_id", id.UserID).Debug("reservation insert hit a uniqueness constraint")
				return fmt.Errorf("%w: user already holds an active reservation", ErrConflict)
			}
			return err
		}

		avail, err = s.reconciler.apply(ctx, spot)
		return err
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(*created)
	}
	s.publish(ctx, domain.EventReservationCreated, created, avail)
	log.WithFields(log.Fields{
		"reservation_id": created.ID,
		"spot_id":        created.SpotID,
		"user_id":        created.UserID,
		"spot_class":     created.SpotClass,
	}).Info("reservation created")
	return created, nil
}

func (s *ReservationService) CheckIn(ctx context.Context, id domain.Identity, target domain.ReservationActionDTO) (*domain.Reservation, error) {
	return s.transition(ctx, id, target, domain.EventReservationCheckedIn, func(res *domain.Reservation, now time.Time) error {
		if res.State != domain.StateReserved {
			return fmt.Errorf("%w: reservation %d is %s", ErrInvalidState, res.ID, res.State)
		}
		if !now.Before(res.ExpiresAt) {
			return fmt.Errorf("%w: hold window for reservation %d has elapsed", ErrInvalidState, res.ID)
		}
		res.State = domain.StateCheckedIn
		res.CheckedInAt = null.TimeFrom(now)
		return nil
	})
}

func (s *ReservationService) CheckOut(ctx context.Context, id domain.Identity, target domain.ReservationActionDTO) (*domain.Reservation, error) {
	return s.transition(ctx, id, target, domain.EventReservationReleased, func(res *domain.Reservation, now time.Time) error {
		if res.State != domain.StateCheckedIn {
			return fmt.Errorf("%w: reservation %d is %s", ErrInvalidState, res.ID, res.State)
		}
		res.Release(domain.ReleaseCompleted, now)
		return nil
	})
}

// Cancel releases an active reservation on behalf of its owner or an admin.
// Cancelling a reservation that is already released succeeds and returns it
// unchanged.
func (s *ReservationService) Cancel(ctx context.Context, id domain.Identity, reservationID int) (*domain.Reservation, error) {
	target := domain.ReservationActionDTO{ReservationID: reservationID}
	return s.transition(ctx, id, target, domain.EventReservationReleased, func(res *domain.Reservation, now time.Time) error {
		if !res.State.IsActive() {
			return errUnchanged
		}
		res.Release(domain.ReleaseCancelled, now)
		return nil
	})
}

// Expire releases a reservation whose hold window elapsed without a
// check-in. State is re-read under lock, so a reservation that was checked
// in, released, or is not yet due yields ErrInvalidState and is untouched.
func (s *ReservationService) Expire(ctx context.Context, reservationID int) (*domain.Reservation, error) {
	var res *domain.Reservation
	var avail domain.Availability
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.reservations.FindByIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.State != domain.StateReserved {
			return fmt.Errorf("%w: reservation %d is %s", ErrInvalidState, res.ID, res.State)
		}
		now := s.now()
		if now.Before(res.ExpiresAt) {
			return fmt.Errorf("%w: reservation %d is not due until %s", ErrInvalidState, res.ID, res.ExpiresAt.Format(time.RFC3339))
		}
		res.Release(domain.ReleaseExpired, now)
		if _, err := s.reservations.Update(ctx, res); err != nil {
			return err
		}
		avail, err = s.reconcileSpot(ctx, res.SpotID)
		return err
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.publish(ctx, domain.EventReservationReleased, res, avail)
	return res, nil
}

// errUnchanged lets a mutate func accept the target as-is: nothing is
// written and no event is published.
var errUnchanged = errors.New("reservation unchanged")

// transition loads the target under lock, checks ownership, applies mutate,
// and reconciles the spot, all in one transaction.
func (s *ReservationService) transition(
	ctx context.Context,
	id domain.Identity,
	target domain.ReservationActionDTO,
	eventType domain.ReservationEventType,
	mutate func(res *domain.Reservation, now time.Time) error,
) (*domain.Reservation, error) {
	if target.ReservationID <= 0 && target.QRToken == "" {
		return nil, fmt.Errorf("%w: reservation id or qr token is required", ErrNotFound)
	}

	var res *domain.Reservation
	var avail domain.Availability
	changed := true
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		changed = true
		res, err = s.lockTarget(ctx, target)
		if err != nil {
			return err
		}
		if !id.CanAccess(res.UserID) {
			return fmt.Errorf("%w: reservation %d belongs to another user", ErrUnauthorized, res.ID)
		}
		if err := mutate(res, s.now()); err != nil {
			if errors.Is(err, errUnchanged) {
				changed = false
				return nil
			}
			return err
		}
		if _, err := s.reservations.Update(ctx, res); err != nil {
			return err
		}
		avail, err = s.reconcileSpot(ctx, res.SpotID)
		return err
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !changed {
		return res, nil
	}

	s.publish(ctx, eventType, res, avail)
	log.WithFields(log.Fields{
		"reservation_id": res.ID,
		"spot_id":        res.SpotID,
		"state":          res.State,
	}).Info("reservation updated")
	return res, nil
}

func (s *ReservationService) lockTarget(ctx context.Context, target domain.ReservationActionDTO) (*domain.Reservation, error) {
	reservationID := target.ReservationID
	if reservationID <= 0 {
		res, err := s.reservations.FindByQRToken(ctx, target.QRToken)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: no reservation for qr token", ErrNotFound)
			}
			return nil, err
		}
		reservationID = res.ID
	}
	res, err := s.reservations.FindByIDForUpdate(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, reservationID)
		}
		return nil, err
	}
	if target.ReservationID > 0 && target.QRToken != "" && target.QRToken != res.QRToken {
		return nil, fmt.Errorf("%w: qr token does not match reservation %d", ErrNotFound, reservationID)
	}
	return res, nil
}

// reconcileSpot locks the spot row and re-derives its availability. A spot
// that no longer exists has nothing to reconcile.
func (s *ReservationService) reconcileSpot(ctx context.Context, spotID int) (domain.Availability, error) {
	spot, err := s.spotRepo.FindByIDForUpdate(ctx, spotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Availability{}, nil
		}
		return domain.Availability{}, err
	}
	return s.reconciler.apply(ctx, spot)
}

func (s *ReservationService) GetCurrent(ctx context.Context, userID int) (*domain.Reservation, error) {
	res, err := s.reservations.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: no active reservation", ErrNotFound)
		}
		return nil, err
	}
	return res, nil
}

func (s *ReservationService) GetByID(ctx context.Context, id domain.Identity, reservationID int) (*domain.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, reservationID)
		}
		return nil, err
	}
	if !id.CanAccess(res.UserID) {
		return nil, fmt.Errorf("%w: reservation %d belongs to another user", ErrUnauthorized, res.ID)
	}
	return res, nil
}

// ListForUser returns the user's reservations, newest first.
func (s *ReservationService) ListForUser(ctx context.Context, userID int) ([]domain.Reservation, error) {
	list, err := s.reservations.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Reservation{}
	}
	return list, nil
}

func (s *ReservationService) publish(ctx context.Context, eventType domain.ReservationEventType, res *domain.Reservation, avail domain.Availability) {
	if s.publisher == nil {
		return
	}
	event := domain.ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          eventType,
		ReservationID: res.ID,
		SpotID:        res.SpotID,
		UserID:        res.UserID,
		SpotClass:     res.SpotClass,
		State:         res.State,
		ReleaseReason: res.ReleaseReason.String,
		Availability:  avail,
		OccurredAt:    s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"event_type":     eventType,
			"reservation_id": res.ID,
		}).Warn("failed to publish reservation event")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"parkease/internal/domain"
	"parkease/internal/repository"

	log "github.com/sirupsen/logrus"
)

// Reconciler derives a spot's available counts from the reservation ledger.
// It is the only writer of StandardAvailable and EvAvailable outside spot
// creation.
type Reconciler struct {
	tx           repository.TxManager
	spotRepo     repository.SpotRepository
	reservations repository.ReservationRepository
}

func NewReconciler(tx repository.TxManager, spotRepo repository.SpotRepository, reservations repository.ReservationRepository) *Reconciler {
	return &Reconciler{tx: tx, spotRepo: spotRepo, reservations: reservations}
}

// Reconcile recomputes and persists the spot's availability. Called inside a
// transaction it joins it; otherwise it opens one.
func (r *Reconciler) Reconcile(ctx context.Context, spotID int) (domain.Availability, error) {
	var out domain.Availability
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		spot, err := r.spotRepo.FindByIDForUpdate(ctx, spotID)
		if err != nil {
			return err
		}
		out, err = r.apply(ctx, spot)
		return err
	})
	if err != nil {
		return domain.Availability{}, mapRepoError(err)
	}
	return out, nil
}

// Derive returns the ledger-derived availability without persisting it.
func (r *Reconciler) Derive(ctx context.Context, spot *domain.Spot) (domain.Availability, error) {
	counts, err := r.reservations.CountActiveBySpot(ctx, spot.ID)
	if err != nil {
		return domain.Availability{}, fmt.Errorf("counting active reservations for spot %d: %w", spot.ID, err)
	}
	return domain.Availability{
		Standard: max(spot.StandardCapacity-counts.Standard, 0),
		Ev:       max(spot.EvCapacity-counts.Ev, 0),
	}, nil
}

// apply must run inside a transaction that holds the spot row.
func (r *Reconciler) apply(ctx context.Context, spot *domain.Spot) (domain.Availability, error) {
	avail, err := r.Derive(ctx, spot)
	if err != nil {
		return domain.Availability{}, err
	}
	if avail.Standard == spot.StandardAvailable && avail.Ev == spot.EvAvailable {
		return avail, nil
	}
	if err := r.spotRepo.UpdateAvailability(ctx, spot.ID, avail); err != nil {
		return domain.Availability{}, fmt.Errorf("persisting availability for spot %d: %w", spot.ID, err)
	}
	spot.StandardAvailable, spot.EvAvailable = avail.Standard, avail.Ev
	return avail, nil
}

// ReconcileAll repairs every spot and returns how many needed a correction.
// A failure on one spot is logged and does not stop the others.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	spots, err := r.spotRepo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing spots: %w", err)
	}
	corrected := 0
	for _, spot := range spots {
		avail, err := r.Reconcile(ctx, spot.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			log.WithError(err).WithField("spot_id", spot.ID).Warn("reconcile failed")
			continue
		}
		if avail.Standard != spot.StandardAvailable || avail.Ev != spot.EvAvailable {
			log.WithFields(log.Fields{
				"spot_id":            spot.ID,
				"standard_available": avail.Standard,
				"ev_available":       avail.Ev,
			}).Info("spot availability corrected")
			corrected++
		}
	}
	return corrected, nil
}

// mapRepoError translates storage errors into the service taxonomy.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrSerialization):
		return fmt.Errorf("%w: %v", ErrTransactionAborted, err)
	}
	return err
}

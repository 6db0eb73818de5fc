package service

import (
	"context"
	"errors"
	"fmt"

	"parkease/internal/domain"
	"parkease/internal/geocode"
	"parkease/internal/repository"

	log "github.com/sirupsen/logrus"
)

// Geocoder resolves a street address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng float64, err error)
}

type SpotService struct {
	tx           repository.TxManager
	spotRepo     repository.SpotRepository
	reservations repository.ReservationRepository
	reconciler   *Reconciler
	geocoder     Geocoder
}

// NewSpotService builds the admin-facing spot service. geocoder may be nil,
// in which case new spots must carry explicit coordinates.
func NewSpotService(
	tx repository.TxManager,
	spotRepo repository.SpotRepository,
	reservations repository.ReservationRepository,
	reconciler *Reconciler,
	geocoder Geocoder,
) *SpotService {
	return &SpotService{
		tx:           tx,
		spotRepo:     spotRepo,
		reservations: reservations,
		reconciler:   reconciler,
		geocoder:     geocoder,
	}
}

func (s *SpotService) CreateSpot(ctx context.Context, id domain.Identity, dto domain.SpotDTO) (*domain.Spot, error) {
	if !id.IsAdmin {
		return nil, fmt.Errorf("%w: creating spots requires admin", ErrUnauthorized)
	}
	if err := validateCapacities(dto); err != nil {
		return nil, err
	}
	lat, lng, err := s.resolveCoordinates(ctx, dto)
	if err != nil {
		return nil, err
	}

	spot := &domain.Spot{
		Name:              dto.Name,
		Address:           dto.Address,
		Latitude:          lat,
		Longitude:         lng,
		StandardCapacity:  dto.StandardCapacity,
		EvCapacity:        dto.EvCapacity,
		StandardAvailable: dto.StandardCapacity,
		EvAvailable:       dto.EvCapacity,
		EvChargingEnabled: dto.EvChargingEnabled && dto.EvCapacity > 0,
		CreatedBy:         id.UserID,
	}
	created, err := s.spotRepo.Create(ctx, spot)
	if err != nil {
		return nil, fmt.Errorf("creating spot: %w", err)
	}
	log.WithFields(log.Fields{"spot_id": created.ID, "name": created.Name}).Info("spot created")
	return created, nil
}

// UpdateSpot applies new details and capacities. Available counts move by
// the capacity delta, clamped at zero. The result is checked against the
// ledger under the same row lock and the ledger wins if they disagree.
func (s *SpotService) UpdateSpot(ctx context.Context, id domain.Identity, spotID int, dto domain.SpotDTO) (*domain.Spot, error) {
	if !id.IsAdmin {
		return nil, fmt.Errorf("%w: updating spots requires admin", ErrUnauthorized)
	}
	if err := validateCapacities(dto); err != nil {
		return nil, err
	}
	existing, err := s.spotRepo.FindByID(ctx, spotID)
	if err != nil {
		return nil, s.spotError(err, spotID)
	}

	lat, lng := existing.Latitude, existing.Longitude
	switch {
	case dto.Latitude != nil && dto.Longitude != nil:
		lat, lng = *dto.Latitude, *dto.Longitude
	case dto.Address != existing.Address:
		if lat, lng, err = s.resolveCoordinates(ctx, dto); err != nil {
			return nil, err
		}
	}

	var updated *domain.Spot
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		spot, err := s.spotRepo.FindByIDForUpdate(ctx, spotID)
		if err != nil {
			return s.spotError(err, spotID)
		}

		standard := max(spot.StandardAvailable+dto.StandardCapacity-spot.StandardCapacity, 0)
		ev := max(spot.EvAvailable+dto.EvCapacity-spot.EvCapacity, 0)

		spot.Name = dto.Name
		spot.Address = dto.Address
		spot.Latitude, spot.Longitude = lat, lng
		spot.StandardCapacity = dto.StandardCapacity
		spot.EvCapacity = dto.EvCapacity
		spot.EvChargingEnabled = dto.EvChargingEnabled
		if spot.EvCapacity == 0 {
			spot.EvChargingEnabled = false
			ev = 0
		}

		ledger, err := s.reconciler.Derive(ctx, spot)
		if err != nil {
			return err
		}
		if ledger.Standard != standard || ledger.Ev != ev {
			log.WithFields(log.Fields{
				"spot_id":       spot.ID,
				"delta_derived": domain.Availability{Standard: standard, Ev: ev},
				"ledger":        ledger,
			}).Warn("spot availability drifted from ledger, using ledger counts")
			standard, ev = ledger.Standard, ledger.Ev
		}
		spot.StandardAvailable, spot.EvAvailable = standard, ev

		updated, err = s.spotRepo.Update(ctx, spot)
		return err
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return updated, nil
}

// DeleteSpot removes a spot. Spots with active reservations cannot be
// deleted; those reservations have to be released first.
func (s *SpotService) DeleteSpot(ctx context.Context, id domain.Identity, spotID int) error {
	if !id.IsAdmin {
		return fmt.Errorf("%w: deleting spots requires admin", ErrUnauthorized)
	}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.spotRepo.FindByIDForUpdate(ctx, spotID); err != nil {
			return s.spotError(err, spotID)
		}
		counts, err := s.reservations.CountActiveBySpot(ctx, spotID)
		if err != nil {
			return err
		}
		if active := counts.Standard + counts.Ev; active > 0 {
			return fmt.Errorf("%w: spot %d still has %d active reservations", ErrConflict, spotID, active)
		}
		return s.spotRepo.Delete(ctx, spotID)
	})
	if err != nil {
		return mapRepoError(err)
	}
	log.WithField("spot_id", spotID).Info("spot deleted")
	return nil
}

// ListSpots returns every spot, annotated with the caller's active
// reservation where it applies.
func (s *SpotService) ListSpots(ctx context.Context, id domain.Identity) ([]domain.SpotView, error) {
	spots, err := s.spotRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.activeFor(ctx, id)
	if err != nil {
		return nil, err
	}
	views := make([]domain.SpotView, 0, len(spots))
	for _, spot := range spots {
		views = append(views, domain.NewSpotView(spot, active))
	}
	return views, nil
}

func (s *SpotService) GetSpot(ctx context.Context, id domain.Identity, spotID int) (*domain.SpotView, error) {
	spot, err := s.spotRepo.FindByID(ctx, spotID)
	if err != nil {
		return nil, s.spotError(err, spotID)
	}
	active, err := s.activeFor(ctx, id)
	if err != nil {
		return nil, err
	}
	view := domain.NewSpotView(*spot, active)
	return &view, nil
}

func (s *SpotService) activeFor(ctx context.Context, id domain.Identity) (*domain.Reservation, error) {
	active, err := s.reservations.FindActiveByUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return active, nil
}

func validateCapacities(dto domain.SpotDTO) error {
	if dto.StandardCapacity < 0 || dto.EvCapacity < 0 {
		return fmt.Errorf("%w: capacities must not be negative", ErrInvalidInput)
	}
	return nil
}

func (s *SpotService) resolveCoordinates(ctx context.Context, dto domain.SpotDTO) (float64, float64, error) {
	if dto.Latitude != nil && dto.Longitude != nil {
		return *dto.Latitude, *dto.Longitude, nil
	}
	if s.geocoder == nil {
		return 0, 0, fmt.Errorf("%w: no geocoder configured, coordinates are required", ErrGeocodingFailed)
	}
	lat, lng, err := s.geocoder.Geocode(ctx, dto.Address)
	switch {
	case err == nil:
		return lat, lng, nil
	case errors.Is(err, geocode.ErrNoResults):
		return 0, 0, fmt.Errorf("%w: %v", ErrGeocodingFailed, err)
	default:
		return 0, 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
}

func (s *SpotService) spotError(err error, spotID int) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: spot %d", ErrNotFound, spotID)
	}
	return err
}

package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"parkease/internal/domain"
	"parkease/internal/repository"
	"time"
)

const spotColumns = `id, name, address, latitude, longitude, standard_capacity, ev_capacity,
	standard_available, ev_available, ev_charging_enabled, created_by, created_at, updated_at`

type pgSpotRepository struct {
	db *sql.DB
}

func NewPgSpotRepository(db *sql.DB) repository.SpotRepository {
	return &pgSpotRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpot(row rowScanner) (*domain.Spot, error) {
	spot := &domain.Spot{}
	err := row.Scan(&spot.ID, &spot.Name, &spot.Address, &spot.Latitude, &spot.Longitude,
		&spot.StandardCapacity, &spot.EvCapacity, &spot.StandardAvailable, &spot.EvAvailable,
		&spot.EvChargingEnabled, &spot.CreatedBy, &spot.CreatedAt, &spot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) Create(ctx context.Context, spot *domain.Spot) (*domain.Spot, error) {
	query := `INSERT INTO spots (name, address, latitude, longitude, standard_capacity, ev_capacity,
	              standard_available, ev_available, ev_charging_enabled, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id, created_at, updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		spot.Name, spot.Address, spot.Latitude, spot.Longitude, spot.StandardCapacity, spot.EvCapacity,
		spot.StandardAvailable, spot.EvAvailable, spot.EvChargingEnabled, spot.CreatedBy,
	).Scan(&spot.ID, &spot.CreatedAt, &spot.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("SpotRepository.Create: %w", classify(err))
	}
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) FindByID(ctx context.Context, id int) (*domain.Spot, error) {
	return r.findOne(ctx, `SELECT `+spotColumns+` FROM spots WHERE id = $1`, id, "FindByID")
}

func (r *pgSpotRepository) FindByIDForUpdate(ctx context.Context, id int) (*domain.Spot, error) {
	return r.findOne(ctx, `SELECT `+spotColumns+` FROM spots WHERE id = $1 FOR UPDATE`, id, "FindByIDForUpdate")
}

func (r *pgSpotRepository) findOne(ctx context.Context, query string, id int, op string) (*domain.Spot, error) {
	spot, err := scanSpot(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.%s: %w", op, classify(err))
	}
	return spot, nil
}

func (r *pgSpotRepository) FindAll(ctx context.Context) ([]domain.Spot, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT `+spotColumns+` FROM spots ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll: %w", classify(err))
	}
	defer rows.Close()

	var spots []domain.Spot
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("SpotRepository.FindAll (scanning row): %w", err)
		}
		spots = append(spots, *spot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll (rows error): %w", classify(err))
	}
	return spots, nil
}

func (r *pgSpotRepository) Update(ctx context.Context, spot *domain.Spot) (*domain.Spot, error) {
	query := `UPDATE spots SET name = $1, address = $2, latitude = $3, longitude = $4,
	              standard_capacity = $5, ev_capacity = $6, standard_available = $7, ev_available = $8,
	              ev_charging_enabled = $9, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $10 RETURNING updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		spot.Name, spot.Address, spot.Latitude, spot.Longitude, spot.StandardCapacity, spot.EvCapacity,
		spot.StandardAvailable, spot.EvAvailable, spot.EvChargingEnabled, spot.ID,
	).Scan(&spot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.Update: %w", classify(err))
	}
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) UpdateAvailability(ctx context.Context, id int, availability domain.Availability) error {
	query := `UPDATE spots SET standard_available = $1, ev_available = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, availability.Standard, availability.Ev, id)
	if err != nil {
		return fmt.Errorf("SpotRepository.UpdateAvailability: %w", classify(err))
	}
	return expectOneRow(result, "SpotRepository.UpdateAvailability")
}

func (r *pgSpotRepository) Delete(ctx context.Context, id int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM spots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("SpotRepository.Delete: %w", classify(err))
	}
	return expectOneRow(result, "SpotRepository.Delete")
}

func expectOneRow(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s (checking rows affected): %w", op, err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

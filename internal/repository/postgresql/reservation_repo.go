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

const reservationColumns = `id, spot_id, user_id, spot_class, state, release_reason, qr_token,
	created_at, expires_at, checked_in_at, released_at`

type pgReservationRepository struct {
	db *sql.DB
}

func NewPgReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &pgReservationRepository{db: db}
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	err := row.Scan(&res.ID, &res.SpotID, &res.UserID, &res.SpotClass, &res.State, &res.ReleaseReason,
		&res.QRToken, &res.CreatedAt, &res.ExpiresAt, &res.CheckedInAt, &res.ReleasedAt)
	if err != nil {
		return nil, err
	}
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.ExpiresAt = res.ExpiresAt.In(time.UTC)
	if res.CheckedInAt.Valid {
		res.CheckedInAt.Time = res.CheckedInAt.Time.In(time.UTC)
	}
	if res.ReleasedAt.Valid {
		res.ReleasedAt.Time = res.ReleasedAt.Time.In(time.UTC)
	}
	return res, nil
}

func (r *pgReservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	query := `INSERT INTO reservations
	              (spot_id, user_id, spot_class, state, release_reason, qr_token, created_at, expires_at, checked_in_at, released_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		res.SpotID, res.UserID, res.SpotClass, res.State, res.ReleaseReason, res.QRToken,
		res.CreatedAt, res.ExpiresAt, res.CheckedInAt, res.ReleasedAt,
	).Scan(&res.ID)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.Create: %w", classify(err))
	}
	return res, nil
}

func (r *pgReservationRepository) FindByID(ctx context.Context, id int) (*domain.Reservation, error) {
	return r.findOne(ctx, "FindByID", `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
}

func (r *pgReservationRepository) FindByIDForUpdate(ctx context.Context, id int) (*domain.Reservation, error) {
	return r.findOne(ctx, "FindByIDForUpdate", `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgReservationRepository) FindByQRToken(ctx context.Context, token string) (*domain.Reservation, error) {
	return r.findOne(ctx, "FindByQRToken", `SELECT `+reservationColumns+` FROM reservations WHERE qr_token = $1`, token)
}

func (r *pgReservationRepository) FindActiveByUser(ctx context.Context, userID int) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
	          WHERE user_id = $1 AND state IN ($2, $3)
	          ORDER BY created_at DESC LIMIT 1`
	return r.findOne(ctx, "FindActiveByUser", query, userID, domain.StateReserved, domain.StateCheckedIn)
}

func (r *pgReservationRepository) findOne(ctx context.Context, op string, query string, args ...any) (*domain.Reservation, error) {
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.%s: %w", op, classify(err))
	}
	return res, nil
}

func (r *pgReservationRepository) FindByUser(ctx context.Context, userID int) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY created_at DESC`
	return r.findMany(ctx, "FindByUser", query, userID)
}

func (r *pgReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
	          WHERE state = $1 AND expires_at < $2
	          ORDER BY expires_at ASC LIMIT $3`
	return r.findMany(ctx, "FindExpired", query, domain.StateReserved, now, limit)
}

func (r *pgReservationRepository) findMany(ctx context.Context, op string, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s: %w", op, classify(err))
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("ReservationRepository.%s (scanning row): %w", op, err)
		}
		out = append(out, *res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s (rows error): %w", op, classify(err))
	}
	return out, nil
}

func (r *pgReservationRepository) CountActiveBySpot(ctx context.Context, spotID int) (domain.ClassCounts, error) {
	query := `SELECT
	              COUNT(*) FILTER (WHERE spot_class = $2),
	              COUNT(*) FILTER (WHERE spot_class = $3)
	          FROM reservations
	          WHERE spot_id = $1 AND state IN ($4, $5)`
	var counts domain.ClassCounts
	err := conn(ctx, r.db).QueryRowContext(ctx, query, spotID,
		domain.ClassStandard, domain.ClassEV, domain.StateReserved, domain.StateCheckedIn,
	).Scan(&counts.Standard, &counts.Ev)
	if err != nil {
		return domain.ClassCounts{}, fmt.Errorf("ReservationRepository.CountActiveBySpot: %w", classify(err))
	}
	return counts, nil
}

func (r *pgReservationRepository) Update(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	query := `UPDATE reservations
	          SET state = $1, release_reason = $2, checked_in_at = $3, released_at = $4
	          WHERE id = $5`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		res.State, res.ReleaseReason, res.CheckedInAt, res.ReleasedAt, res.ID)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.Update: %w", classify(err))
	}
	if err := expectOneRow(result, "ReservationRepository.Update"); err != nil {
		return nil, err
	}
	return res, nil
}

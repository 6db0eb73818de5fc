package postgresql

import (
	"errors"
	"fmt"
	"parkease/internal/repository"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"pgx serialization failure", &pgconn.PgError{Code: "40001"}, repository.ErrSerialization},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, repository.ErrSerialization},
		{"pgx unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "reservations_one_active_per_user"}, repository.ErrDuplicateEntry},
		{"pq serialization failure", &pq.Error{Code: "40001"}, repository.ErrSerialization},
		{"pq unique violation", &pq.Error{Code: "23505"}, repository.ErrDuplicateEntry},
		{"wrapped pgx error", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), repository.ErrDuplicateEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.NoError(t, classify(nil))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, classify(plain))

	other := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, error(other), classify(other))
}

func TestSqlState_Constraint(t *testing.T) {
	code, constraint, ok := sqlState(&pq.Error{Code: "23505", Constraint: "reservations_qr_token_key"})
	assert.True(t, ok)
	assert.Equal(t, "23505", code)
	assert.Equal(t, "reservations_qr_token_key", constraint)
}

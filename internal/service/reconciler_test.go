package service

import (
	"context"
	"testing"

	"parkease/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_RepairsDriftAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spot := f.seedSpot(t, 3, 2)

	_, err := f.reservations.Reserve(ctx, alice, reserveDTO(spot.ID, domain.ClassStandard))
	require.NoError(t, err)
	_, err = f.reservations.Reserve(ctx, bob, reserveDTO(spot.ID, domain.ClassEV))
	require.NoError(t, err)

	require.NoError(t, f.store.Spots().UpdateAvailability(ctx, spot.ID, domain.Availability{Standard: 9, Ev: 0}))

	first, err := f.reconciler.Reconcile(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{Standard: 2, Ev: 1}, first)

	second, err := f.reconciler.Reconcile(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got := f.spot(t, spot.ID)
	assert.Equal(t, 2, got.StandardAvailable)
	assert.Equal(t, 1, got.EvAvailable)
}

func TestReconcile_ClampsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spot := f.seedSpot(t, 2, 0)

	_, err := f.reservations.Reserve(ctx, alice, reserveDTO(spot.ID, domain.ClassStandard))
	require.NoError(t, err)
	_, err = f.reservations.Reserve(ctx, bob, reserveDTO(spot.ID, domain.ClassStandard))
	require.NoError(t, err)

	shrunk := f.spot(t, spot.ID)
	shrunk.StandardCapacity = 1
	_, err = f.store.Spots().Update(ctx, shrunk)
	require.NoError(t, err)

	avail, err := f.reconciler.Reconcile(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, avail.Standard)
}

func TestReconcile_MissingSpot(t *testing.T) {
	f := newFixture(t)
	_, err := f.reconciler.Reconcile(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedSpot(t, 2, 0)
	b := f.seedSpot(t, 4, 1)
	require.NoError(t, f.store.Spots().UpdateAvailability(ctx, a.ID, domain.Availability{Standard: 0}))

	corrected, err := f.reconciler.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, corrected)
	assert.Equal(t, 2, f.spot(t, a.ID).StandardAvailable)
	assert.Equal(t, 4, f.spot(t, b.ID).StandardAvailable)

	corrected, err = f.reconciler.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, corrected)
}

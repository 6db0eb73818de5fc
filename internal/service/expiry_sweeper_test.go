package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSweeper(f *fixture) *ExpirySweeper {
	s := NewExpirySweeper(f.store.Reservations(), f.reservations, time.Hour)
	s.SetClock(f.clock.Now)
	return s
}

func TestSweep_ReleasesOverdueHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spot := f.seedSpot(t, 2, 0)
	sweeper := newSweeper(f)
	defer sweeper.Stop()

	stale, err := f.reservations.Reserve(ctx, alice, reserveDTO(spot.ID, domain.ClassStandard))
	require.NoError(t, err)
	parked, err := f.reservations.Reserve(ctx, bob, reserveDTO(spot.ID, domain.ClassStandard))
	require.NoError(t, err)
	_, err = f.reservations.CheckIn(ctx, bob, byID(parked.ID))
	require.NoError(t, err)
	assert.Equal(t, 0, f.spot(t, spot.ID).StandardAvailable)

	assert.Zero(t, sweeper.Sweep(ctx), "nothing is due before the hold window")

	f.clock.Advance(20*time.Minute + time.Second)
	assert.Equal(t, 1, sweeper.Sweep(ctx))

	got, err := f.store.Reservations().FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReleased, got.State)
	assert.Equal(t, string(domain.ReleaseExpired), got.ReleaseReason.String)

	kept, err := f.store.Reservations().FindByID(ctx, parked.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCheckedIn, kept.State)
	assert.Equal(t, 1, f.spot(t, spot.ID).StandardAvailable)

	assert.Zero(t, sweeper.Sweep(ctx), "second sweep is a no-op")
}

func TestStart_RecoversHoldsLeftBeforeRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spot := f.seedSpot(t, 1, 0)
	res, err := f.reservations.Reserve(ctx, alice, reserveDTO(spot.ID, domain.ClassStandard))
	require.NoError(t, err)
	f.clock.Advance(45 * time.Minute)

	sweeper := newSweeper(f)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	assert.Eventually(t, func() bool {
		got, err := f.store.Reservations().FindByID(ctx, res.ID)
		return err == nil && got.State == domain.StateReleased
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedule_FiresAtHoldWindow(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	reconciler := NewReconciler(store.TxManager(), store.Spots(), store.Reservations())
	svc := NewReservationService(store.TxManager(), store.Spots(), store.Reservations(), reconciler, nil, 30*time.Millisecond)
	sweeper := NewExpirySweeper(store.Reservations(), svc, time.Hour)
	svc.SetScheduler(sweeper)
	defer sweeper.Stop()

	spot, err := store.Spots().Create(ctx, &domain.Spot{Name: "Lot", StandardCapacity: 1, StandardAvailable: 1})
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, alice, reserveDTO(spot.ID, domain.ClassStandard))
	require.NoError(t, err)
	assert.Equal(t, 1, sweeper.Pending())

	assert.Eventually(t, func() bool {
		got, err := store.Reservations().FindByID(ctx, res.ID)
		return err == nil && got.State == domain.StateReleased
	}, 2*time.Second, 10*time.Millisecond)

	got, err := store.Spots().FindByID(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StandardAvailable)
	assert.Zero(t, sweeper.Pending())
}

func TestStop_CancelsPendingTimers(t *testing.T) {
	f := newFixture(t)
	sweeper := newSweeper(f)
	sweeper.Schedule(domain.Reservation{ID: 1, ExpiresAt: f.clock.Now().Add(time.Hour)})
	assert.Equal(t, 1, sweeper.Pending())

	sweeper.Stop()
	assert.Zero(t, sweeper.Pending())

	sweeper.Schedule(domain.Reservation{ID: 2, ExpiresAt: f.clock.Now().Add(time.Hour)})
	assert.Zero(t, sweeper.Pending(), "stopped sweeper ignores new schedules")
}

type flakyExpirer struct {
	calls    atomic.Int32
	failures int32
	final    error
}

func (e *flakyExpirer) Expire(_ context.Context, id int) (*domain.Reservation, error) {
	n := e.calls.Add(1)
	if n <= e.failures {
		return nil, fmt.Errorf("%w: attempt %d", ErrTransactionAborted, n)
	}
	if e.final != nil {
		return nil, e.final
	}
	return &domain.Reservation{ID: id}, nil
}

func TestExpire_ErrorPolicy(t *testing.T) {
	tests := []struct {
		name      string
		expirer   *flakyExpirer
		wantOK    bool
		wantCalls int32
	}{
		{"retries aborted transactions", &flakyExpirer{failures: 2}, true, 3},
		{"gives up after max attempts", &flakyExpirer{failures: 10}, false, expireMaxAttempts},
		{"invalid state is not retried", &flakyExpirer{final: ErrInvalidState}, false, 1},
		{"not found is not retried", &flakyExpirer{final: ErrNotFound}, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewExpirySweeper(memory.NewStore().Reservations(), tt.expirer, time.Hour)
			defer s.Stop()
			assert.Equal(t, tt.wantOK, s.expire(context.Background(), 1))
			assert.Equal(t, tt.wantCalls, tt.expirer.calls.Load())
		})
	}
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	admin = domain.Identity{UserID: 1, IsAdmin: true}
	alice = domain.Identity{UserID: 10}
	bob   = domain.Identity{UserID: 11}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Types() []domain.ReservationEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ReservationEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []domain.Reservation
}

func (s *recordingScheduler) Schedule(res domain.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, res)
}

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

type fixture struct {
	store        *memory.Store
	clock        *fakeClock
	publisher    *recordingPublisher
	scheduler    *recordingScheduler
	reconciler   *Reconciler
	reservations *ReservationService
	spots        *SpotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:     store,
		clock:     newFakeClock(),
		publisher: &recordingPublisher{},
		scheduler: &recordingScheduler{},
	}
	f.reconciler = NewReconciler(store.TxManager(), store.Spots(), store.Reservations())
	f.reservations = NewReservationService(store.TxManager(), store.Spots(), store.Reservations(),
		f.reconciler, f.publisher, 20*time.Minute)
	f.reservations.SetClock(f.clock.Now)
	f.reservations.SetScheduler(f.scheduler)
	f.spots = NewSpotService(store.TxManager(), store.Spots(), store.Reservations(), f.reconciler, nil)
	return f
}

func (f *fixture) seedSpot(t *testing.T, standard, ev int) *domain.Spot {
	t.Helper()
	spot, err := f.store.Spots().Create(context.Background(), &domain.Spot{
		Name:              "Garage",
		Address:           "1 Main St",
		StandardCapacity:  standard,
		StandardAvailable: standard,
		EvCapacity:        ev,
		EvAvailable:       ev,
		EvChargingEnabled: ev > 0,
	})
	require.NoError(t, err)
	return spot
}

func (f *fixture) spot(t *testing.T, id int) *domain.Spot {
	t.Helper()
	spot, err := f.store.Spots().FindByID(context.Background(), id)
	require.NoError(t, err)
	return spot
}

func reserveDTO(spotID int, class domain.SpotClass) domain.ReserveDTO {
	return domain.ReserveDTO{SpotID: spotID, SpotClass: string(class)}
}

func byID(id int) domain.ReservationActionDTO {
	return domain.ReservationActionDTO{ReservationID: id}
}

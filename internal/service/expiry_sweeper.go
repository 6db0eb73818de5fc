package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository"

	log "github.com/sirupsen/logrus"
)

const (
	sweepBatchSize     = 100
	expireMaxAttempts  = 3
	expireRetryBackoff = 50 * time.Millisecond
)

// Expirer releases a reservation whose hold window has elapsed.
type Expirer interface {
	Expire(ctx context.Context, reservationID int) (*domain.Reservation, error)
}

// ExpirySweeper releases reservations that were never checked in. Each new
// reservation gets an in-process timer; a periodic scan over the persisted
// expires_at column catches anything a timer missed, including holds left
// over from before a restart.
type ExpirySweeper struct {
	reservations repository.ReservationRepository
	expirer      Expirer
	interval     time.Duration
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	timers map[int]*time.Timer
}

func NewExpirySweeper(reservations repository.ReservationRepository, expirer Expirer, interval time.Duration) *ExpirySweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExpirySweeper{
		reservations: reservations,
		expirer:      expirer,
		interval:     interval,
		now:          func() time.Time { return time.Now().UTC() },
		ctx:          ctx,
		cancel:       cancel,
		timers:       make(map[int]*time.Timer),
	}
}

// SetClock replaces the clock used to select due reservations, for tests.
func (s *ExpirySweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs the periodic scan until ctx is cancelled or Stop is called.
// The first scan happens immediately.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			s.Sweep(s.ctx)
			select {
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the scan loop and every pending timer, then waits for
// in-flight work to finish.
func (s *ExpirySweeper) Stop() {
	s.cancel()
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Schedule arms a one-shot expiry check at the reservation's ExpiresAt.
func (s *ExpirySweeper) Schedule(res domain.Reservation) {
	delay := res.ExpiresAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	id := res.ID

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()
		s.expire(s.ctx, id)
	})
}

// Pending reports how many timers are armed.
func (s *ExpirySweeper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Sweep expires one batch of overdue reservations and returns how many were
// released.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	due, err := s.reservations.FindExpired(ctx, s.now(), sweepBatchSize)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Error("expiry sweep: listing overdue reservations failed")
		}
		return 0
	}
	released := 0
	for _, res := range due {
		if ctx.Err() != nil {
			break
		}
		if s.expire(ctx, res.ID) {
			released++
		}
	}
	if released > 0 {
		log.WithField("count", released).Info("expiry sweep released overdue reservations")
	}
	return released
}

// expire applies the sweeper's error policy: stale state is a silent no-op,
// aborted transactions are retried and reported if they keep failing.
func (s *ExpirySweeper) expire(ctx context.Context, reservationID int) bool {
	fields := log.Fields{"reservation_id": reservationID}
	for attempt := 1; attempt <= expireMaxAttempts; attempt++ {
		res, err := s.expirer.Expire(ctx, reservationID)
		switch {
		case err == nil:
			log.WithFields(fields).WithField("spot_id", res.SpotID).Info("reservation expired")
			return true
		case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotFound):
			log.WithFields(fields).WithError(err).Debug("expiry skipped")
			return false
		case errors.Is(err, ErrTransactionAborted):
			select {
			case <-ctx.Done():
				return false
			case <-time.After(time.Duration(attempt) * expireRetryBackoff):
			}
		default:
			log.WithFields(fields).WithError(err).Error("expiry failed")
			return false
		}
	}
	log.WithFields(fields).Warn("expiry kept aborting on concurrent updates, leaving it for the next sweep")
	return false
}

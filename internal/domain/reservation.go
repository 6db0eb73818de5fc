package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type ReservationState string

const (
	StateReserved  ReservationState = "reserved"
	StateCheckedIn ReservationState = "checked_in"
	StateReleased  ReservationState = "released"
)

// IsActive reports whether a reservation in this state counts against capacity.
func (s ReservationState) IsActive() bool {
	return s == StateReserved || s == StateCheckedIn
}

// ReleaseReason records why a reservation reached StateReleased.
type ReleaseReason string

const (
	ReleaseCompleted ReleaseReason = "completed"
	ReleaseCancelled ReleaseReason = "cancelled"
	ReleaseExpired   ReleaseReason = "expired"
)

type Reservation struct {
	ID            int              `json:"id"`
	SpotID        int              `json:"spot_id"`
	UserID        int              `json:"user_id"`
	SpotClass     SpotClass        `json:"spot_class"`
	State         ReservationState `json:"state"`
	ReleaseReason null.String      `json:"release_reason"`
	QRToken       string           `json:"qr_token"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	CheckedInAt   null.Time        `json:"checked_in_at"`
	ReleasedAt    null.Time        `json:"released_at"`
}

// Release moves the reservation to StateReleased. It is the only way a
// reservation leaves the active set.
func (r *Reservation) Release(reason ReleaseReason, at time.Time) {
	r.State = StateReleased
	r.ReleaseReason = null.StringFrom(string(reason))
	r.ReleasedAt = null.TimeFrom(at)
}

type ReserveDTO struct {
	SpotID    int    `json:"spot_id" binding:"required"`
	SpotClass string `json:"spot_class" binding:"required"`
}

// ReservationActionDTO identifies a reservation either by id or by the
// token encoded in its QR code.
type ReservationActionDTO struct {
	ReservationID int    `json:"reservation_id"`
	QRToken       string `json:"qr_token"`
}

package domain

import "time"

type ReservationEventType string

const (
	EventReservationCreated   ReservationEventType = "reservation.created"
	EventReservationCheckedIn ReservationEventType = "reservation.checked_in"
	EventReservationReleased  ReservationEventType = "reservation.released"
)

// ReservationEvent is pushed to realtime clients after a lifecycle
// transition commits. Availability is the spot's counts after the change.
type ReservationEvent struct {
	EventID       string               `json:"event_id"`
	Type          ReservationEventType `json:"type"`
	ReservationID int                  `json:"reservation_id"`
	SpotID        int                  `json:"spot_id"`
	UserID        int                  `json:"user_id"`
	SpotClass     SpotClass            `json:"spot_class"`
	State         ReservationState     `json:"state"`
	ReleaseReason string               `json:"release_reason,omitempty"`
	Availability  Availability         `json:"availability"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

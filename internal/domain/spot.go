package domain

import (
	"fmt"
	"time"
)

type SpotClass string

const (
	ClassStandard SpotClass = "standard"
	ClassEV       SpotClass = "ev"
)

func ParseSpotClass(s string) (SpotClass, error) {
	switch SpotClass(s) {
	case ClassStandard, ClassEV:
		return SpotClass(s), nil
	}
	return "", fmt.Errorf("unknown spot class %q", s)
}

// Spot is a parking location with two independent capacity pools.
// StandardAvailable and EvAvailable are derived from the reservation ledger.
type Spot struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	Address           string    `json:"address"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	StandardCapacity  int       `json:"standard_capacity"`
	EvCapacity        int       `json:"ev_capacity"`
	StandardAvailable int       `json:"standard_available"`
	EvAvailable       int       `json:"ev_available"`
	EvChargingEnabled bool      `json:"ev_charging_enabled"`
	CreatedBy         int       `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (s *Spot) Capacity(class SpotClass) int {
	if class == ClassEV {
		return s.EvCapacity
	}
	return s.StandardCapacity
}

func (s *Spot) Available(class SpotClass) int {
	if class == ClassEV {
		return s.EvAvailable
	}
	return s.StandardAvailable
}

func (s *Spot) TotalCapacity() int  { return s.StandardCapacity + s.EvCapacity }
func (s *Spot) TotalAvailable() int { return s.StandardAvailable + s.EvAvailable }

// Availability is a per-class count of free slots.
type Availability struct {
	Standard int `json:"standard_available"`
	Ev       int `json:"ev_available"`
}

// ClassCounts is a per-class count of active reservations.
type ClassCounts struct {
	Standard int
	Ev       int
}

type SpotDTO struct {
	Name              string   `json:"name" binding:"required"`
	Address           string   `json:"address" binding:"required"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	StandardCapacity  int      `json:"standard_capacity" binding:"min=0"`
	EvCapacity        int      `json:"ev_capacity" binding:"min=0"`
	EvChargingEnabled bool     `json:"ev_charging_enabled"`
}

// SpotView is a spot as seen by one user, with that user's active
// reservation on it if any. EV fields are nil when EV charging is off.
type SpotView struct {
	ID                    int               `json:"id"`
	Name                  string            `json:"name"`
	Address               string            `json:"address"`
	Latitude              float64           `json:"latitude"`
	Longitude             float64           `json:"longitude"`
	StandardCapacity      int               `json:"standard_capacity"`
	StandardAvailable     int               `json:"standard_available"`
	EvCapacity            *int              `json:"ev_capacity,omitempty"`
	EvAvailable           *int              `json:"ev_available,omitempty"`
	EvChargingEnabled     bool              `json:"ev_charging_enabled"`
	TotalCapacity         int               `json:"total_capacity"`
	TotalAvailable        int               `json:"total_available"`
	ReservationStatus     *ReservationState `json:"reservation_status"`
	ReservedByCurrentUser bool              `json:"reserved_by_current_user"`
	ReservationID         *int              `json:"reservation_id"`
}

func NewSpotView(s Spot, active *Reservation) SpotView {
	v := SpotView{
		ID:                s.ID,
		Name:              s.Name,
		Address:           s.Address,
		Latitude:          s.Latitude,
		Longitude:         s.Longitude,
		StandardCapacity:  s.StandardCapacity,
		StandardAvailable: s.StandardAvailable,
		EvChargingEnabled: s.EvChargingEnabled,
		TotalCapacity:     s.TotalCapacity(),
		TotalAvailable:    s.TotalAvailable(),
	}
	if s.EvChargingEnabled {
		evCap, evAvail := s.EvCapacity, s.EvAvailable
		v.EvCapacity = &evCap
		v.EvAvailable = &evAvail
	}
	if active != nil && active.SpotID == s.ID {
		state, id := active.State, active.ID
		v.ReservationStatus = &state
		v.ReservedByCurrentUser = true
		v.ReservationID = &id
	}
	return v
}

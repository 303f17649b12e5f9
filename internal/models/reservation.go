package models

import "time"

// DateLayout is the calendar date format exchanged with the reservations service.
const DateLayout = "2006-01-02"

// ReservationStatus is an open enumeration; the reservations service has used
// more than one vocabulary for it.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCanceled  ReservationStatus = "canceled"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusCompleted ReservationStatus = "completed"
)

// DefaultCancelableStatuses are the statuses that still allow a cancellation.
var DefaultCancelableStatuses = []ReservationStatus{
	ReservationStatusActive,
	ReservationStatusConfirmed,
	ReservationStatusPending,
}

// Reservation is a booking of a room by a user for a date range.
type Reservation struct {
	ID           ID                `json:"id"`
	UserID       ID                `json:"user_id"`
	RoomID       ID                `json:"room_id"`
	StartDate    string            `json:"start_date"`
	EndDate      string            `json:"end_date"`
	Status       ReservationStatus `json:"status"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	CreatedAt    *time.Time        `json:"created_at,omitempty"`
}

// CreateReservationRequest is the body of POST /api/reservations.
type CreateReservationRequest struct {
	UserID    ID     `json:"user_id"`
	RoomID    ID     `json:"room_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CancelReservationRequest is the body of DELETE /api/reservations/:id.
type CancelReservationRequest struct {
	Reason string `json:"reason"`
}

package events

import (
	"time"

	"github.com/spec-kit/table-reservation/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReservationCreated   EventType = "reservation_created"
	EventReservationCancelled EventType = "reservation_cancelled"
	EventReservationUpdated   EventType = "reservation_updated"
	EventReservationDeleted   EventType = "reservation_deleted"
)

// AllEventTypes lists every event the reservation service emits.
var AllEventTypes = []EventType{
	EventReservationCreated,
	EventReservationCancelled,
	EventReservationUpdated,
	EventReservationDeleted,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	SubjectID string      `json:"subject_id"`
	Role      domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	ReservationID string      `json:"reservation_id"`
	Actor         Actor       `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// ReservationSnapshot is the reservation state carried by an event.
type ReservationSnapshot struct {
	OwnerID   string                   `json:"owner_id"`
	TableID   string                   `json:"table_id"`
	Date      domain.Date              `json:"date"`
	StartTime domain.TimeOfDay         `json:"start_time"`
	EndTime   domain.TimeOfDay         `json:"end_time"`
	PartySize int                      `json:"party_size"`
	Status    domain.ReservationStatus `json:"status"`
}

// SnapshotOf copies the event-relevant fields of a reservation.
func SnapshotOf(r *domain.Reservation) ReservationSnapshot {
	return ReservationSnapshot{
		OwnerID:   r.OwnerID,
		TableID:   r.TableID,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		PartySize: r.PartySize,
		Status:    r.Status,
	}
}

// ReservationUpdatedPayload payload.
type ReservationUpdatedPayload struct {
	Before ReservationSnapshot `json:"before"`
	After  ReservationSnapshot `json:"after"`
}

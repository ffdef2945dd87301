package domain

import "time"

// ReservationStatus enumerates lifecycle states for reservations.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a booking of one table for a time window on a date.
type Reservation struct {
	ID        string
	OwnerID   string
	TableID   string
	Date      Date
	StartTime TimeOfDay
	EndTime   TimeOfDay
	PartySize int
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Window returns the reserved [StartTime, EndTime) interval.
func (r *Reservation) Window() TimeWindow {
	return TimeWindow{Start: r.StartTime, End: r.EndTime}
}

// IsActive reports whether the reservation still holds its slot.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}

// Key returns the exclusion key the reservation belongs to.
func (r *Reservation) Key() SlotKey {
	return SlotKey{TableID: r.TableID, Date: r.Date}
}

// SlotKey identifies the (table, date) pair that create and update
// operations serialize on.
type SlotKey struct {
	TableID string
	Date    Date
}

func (k SlotKey) String() string {
	return k.TableID + "|" + k.Date.String()
}

// Equal reports whether both keys name the same table and day.
func (k SlotKey) Equal(other SlotKey) bool {
	return k.TableID == other.TableID && k.Date.Equal(other.Date)
}

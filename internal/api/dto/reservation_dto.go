package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/table-reservation/internal/domain"
)

// CreateReservationRequest payload. Dates are YYYY-MM-DD and times HH:MM.
type CreateReservationRequest struct {
	TableID   string `json:"table_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	PartySize int    `json:"party_size"`
}

// UpdateReservationRequest payload for admin edits. Omitted fields are kept.
type UpdateReservationRequest struct {
	TableID   *string `json:"table_id"`
	Date      *string `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	PartySize *int    `json:"party_size"`
}

// ReservationResponse is the wire form of a reservation.
type ReservationResponse struct {
	ID        string                   `json:"id"`
	OwnerID   string                   `json:"owner_id"`
	TableID   string                   `json:"table_id"`
	Date      domain.Date              `json:"date"`
	StartTime domain.TimeOfDay         `json:"start_time"`
	EndTime   domain.TimeOfDay         `json:"end_time"`
	PartySize int                      `json:"party_size"`
	Status    domain.ReservationStatus `json:"status"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// NewReservationResponse maps a domain reservation.
func NewReservationResponse(r *domain.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		TableID:   r.TableID,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		PartySize: r.PartySize,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// NewReservationList maps a slice, never returning nil.
func NewReservationList(items []domain.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(items))
	for i := range items {
		out = append(out, NewReservationResponse(&items[i]))
	}
	return out
}

// FieldErrors collects per-field parse failures.
type FieldErrors map[string]any

// ParseDate parses raw into a date, recording a failure under field.
func (f FieldErrors) ParseDate(field, raw string) domain.Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		f[field] = "required"
		return domain.Date{}
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		f[field] = err.Error()
	}
	return d
}

// ParseTime parses raw into a time of day, recording a failure under field.
func (f FieldErrors) ParseTime(field, raw string) domain.TimeOfDay {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		f[field] = "required"
		return 0
	}
	t, err := domain.ParseTimeOfDay(raw)
	if err != nil {
		f[field] = err.Error()
	}
	return t
}

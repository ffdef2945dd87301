package service

import "github.com/spec-kit/table-reservation/internal/domain"

// Overlaps reports whether two half-open windows [Start, End) intersect.
// Windows that only touch at a boundary do not overlap.
func Overlaps(a, b domain.TimeWindow) bool {
	return a.Start < b.End && b.Start < a.End
}

// FindConflict returns the first active reservation in existing whose window
// overlaps candidate, or nil. The reservation with id excludeID is skipped so
// a record being edited is not checked against itself.
func FindConflict(candidate domain.TimeWindow, existing []domain.Reservation, excludeID string) *domain.Reservation {
	for i := range existing {
		res := &existing[i]
		if !res.IsActive() || (excludeID != "" && res.ID == excludeID) {
			continue
		}
		if Overlaps(candidate, res.Window()) {
			return res
		}
	}
	return nil
}

package visibility

import "truckmarket/internal/types"

// Admission is the outcome of an admission check. Limit is always the cap
// that was applied so callers can explain a rejection.
type Admission struct {
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
	Limit    int    `json:"limit"`
}

// CanAdmit decides whether a listing being written with status may be
// stored given the seller's current number of available listings. Only
// available listings count against the cap; pending and sold listings are
// always admitted.
func CanAdmit(currentAvailable, limit int, status types.ListingStatus) Admission {
	if status != types.ListingAvailable {
		return Admission{Admitted: true, Limit: limit}
	}
	if currentAvailable < limit {
		return Admission{Admitted: true, Limit: limit}
	}
	return Admission{
		Admitted: false,
		Reason:   types.ReasonListingLimitReached,
		Limit:    limit,
	}
}

// Err converts a rejected admission into the user-facing error. It returns
// nil for admitted writes.
func (a Admission) Err() error {
	if a.Admitted {
		return nil
	}
	return types.NewListingLimitError(a.Limit)
}

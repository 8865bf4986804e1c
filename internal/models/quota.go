package models

import "time"

// QuotaStatus is the result of a quota check. It is derived on every call and
// never cached: the count is recomputed against the current UTC month.
// Limit, Remaining and ResetAt are nil for unlimited roles.
type QuotaStatus struct {
	CreatedThisMonth int        `json:"createdThisMonth"`
	Limit            *int       `json:"limit"`
	Remaining        *int       `json:"remaining"`
	ResetAt          *time.Time `json:"resetDate"`
	IsUnlimited      bool       `json:"isUnlimited"`
	CanCreate        bool       `json:"canCreate"`
}

// UTCMonthWindow returns the half-open interval [start of the UTC month
// containing t, start of the next UTC month).
func UTCMonthWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

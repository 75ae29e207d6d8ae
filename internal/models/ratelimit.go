package models

import "time"

// RateLimitRecord is the per-user quota configuration and live counter
type RateLimitRecord struct {
	Username      string `json:"username"`
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
	Count         int    `json:"count"`
	WindowStart   int64  `json:"window_start"` // unix seconds
}

// WindowExpiresAt returns the end of the current window
func (r RateLimitRecord) WindowExpiresAt() time.Time {
	return time.Unix(r.WindowStart+int64(r.WindowSeconds), 0)
}

// RateLimitRequest is the body of set/update calls
type RateLimitRequest struct {
	Limit         int `json:"limit" validate:"required,min=1"`
	WindowSeconds int `json:"window_seconds" validate:"required,min=1"`
}

// Decision is the outcome of a check-and-consume admission check
type Decision struct {
	Admitted  bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

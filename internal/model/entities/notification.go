package entities

import "time"

// Notification is a transient toast shown to the operator.
type Notification struct {
	ID      string    `json:"id"`
	Type    Severity  `json:"type"`
	Title   string    `json:"title"`
	Icon    string    `json:"icon"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Badge   string    `json:"badge,omitempty"`
	Created time.Time `json:"created"`
}

// Expired reports whether the toast has outlived ttl at now.
func (n Notification) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(n.Created.Add(ttl))
}

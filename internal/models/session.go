package models

import "time"

// FormSession identifies one operator workstation. It plays the role of the
// browser storage origin: every app's fields for the workstation live under it.
type FormSession struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

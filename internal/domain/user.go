package domain

import "time"

// User is one entry of the rider directory: identity, display name and the
// registered push target. Identity comes verified from the auth layer; this
// service never re-validates it.
type User struct {
	Email     string
	Name      string
	PushToken string
	IsAdmin   bool
	CreatedAt time.Time
}

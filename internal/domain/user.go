package domain

import "time"

// User is the stored account record. Username doubles as the token subject.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Nickname     string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

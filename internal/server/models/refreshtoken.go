package models

import "time"

// RefreshToken is one issued refresh JWT, stored verbatim.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	IsRevoked bool
	CreatedAt time.Time
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AdminRole is the role carried by tokens issued after a successful PIN check
const AdminRole = "admin"

// AdminSession is a refresh token issued to an unlocked admin panel
type AdminSession struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}

package model

import "time"

// Role names understood by the core. Anything else is treated as a regular operator.
const (
	RoleAdmin     = "admin"
	RoleReception = "reception"
	RoleOperator  = "operator"
)

// Principal is the caller identity threaded into every core call.
type Principal struct {
	OwnerID string `json:"owner_id"`
	Role    string `json:"role"`
}

// TokenData contains the data stored with a session token.
type TokenData struct {
	Principal
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

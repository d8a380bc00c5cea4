package identity

import "time"

// User is a row of the users table.
type User struct {
	ID           int64
	Name         string
	FullName     string
	Active       bool
	PasswordHash []byte
	CreatedAt    time.Time
}

// Contact is a user's destination for one contact mode.
type Contact struct {
	ModeID      int
	Mode        string
	Destination string
}

// External is an identity asserted by an SSO provider.
type External struct {
	ID   int64
	Name string
}

// Credentials request structure.
type Credentials struct {
	Name     string
	Password string
}

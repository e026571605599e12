package model

import "time"

// User represents an account record as stored in the `users` table.
// The json tags are omitted because these structs are used by the
// repository and service layers; handlers define their own response
// shapes and never expose PasswordHash.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name given at registration.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hash of the password.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

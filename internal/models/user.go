package models

import (
	"time"

	"github.com/google/uuid"
)

// Role gates which workflow actions a user may perform.
type Role string

const (
	RoleAppAdministrator Role = "APP_ADMINISTRATOR"
	RoleAdmin            Role = "ADMIN"
	RoleMaker            Role = "MAKER"
	RoleChecker          Role = "CHECKER"
	RoleEntityUser       Role = "ENTITY_USER"
)

// Unrestricted reports whether the role sees every entity.
func (r Role) Unrestricted() bool {
	return r == RoleAppAdministrator || r == RoleAdmin
}

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's email address (unique). Used for login.
	Email string

	// DisplayName is shown in approval history.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// Role decides whether the user may propose, approve or administer.
	Role Role

	// EntityIDs limits which entities the user can see.
	// Empty means no entity restriction.
	EntityIDs []string

	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string, role Role, entityIDs []string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         role,
		EntityIDs:    entityIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

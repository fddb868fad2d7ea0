// internal/domain/models/roles.go
package models

// Global account roles.
const (
	RoleUser       = "USER"
	RoleManager    = "MANAGER"
	RoleAccountant = "ACCOUNTANT"
	RoleAdmin      = "ADMIN"
)

// Genders accepted at signup.
const (
	GenderMale           = "MALE"
	GenderFemale         = "FEMALE"
	GenderOther          = "OTHER"
	GenderPreferNotToSay = "PREFER_NOT_TO_SAY"
)

// Project statuses.
const (
	ProjectActive    = "ACTIVE"
	ProjectOnHold    = "ON_HOLD"
	ProjectCompleted = "COMPLETED"
	ProjectArchived  = "ARCHIVED"
)

// Task statuses.
const (
	TaskOpen       = "OPEN"
	TaskInProgress = "IN_PROGRESS"
	TaskOnHold     = "ON_HOLD"
	TaskClosed     = "CLOSED"
)

// IsValidRole reports whether role is one of the global account roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleManager, RoleAccountant, RoleAdmin:
		return true
	}
	return false
}

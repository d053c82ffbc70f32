// server/internal/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin     = "admin"
	RoleInspector = "inspector"
	RoleViewer    = "viewer"

	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Permissions checked by the API.
const (
	PermTripsRead    = "trips:read"
	PermTripsWrite   = "trips:write"
	PermBillingWrite = "billing:write"
	PermUsersManage  = "users:manage"
)

var AllPermissions = []string{PermTripsRead, PermTripsWrite, PermBillingWrite, PermUsersManage}

// DefaultPermissions returns the permission set a new user of the role gets
// when the creator does not pass one explicitly.
func DefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return append([]string(nil), AllPermissions...)
	case RoleInspector:
		return []string{PermTripsRead, PermTripsWrite}
	default:
		return []string{PermTripsRead}
	}
}

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleInspector || role == RoleViewer
}

// User struct matches the document in MongoDB
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username         string             `bson:"username" json:"username"`
	Email            string             `bson:"email,omitempty" json:"email,omitempty"`
	Name             string             `bson:"name" json:"name"`
	Password         string             `bson:"password" json:"-"`
	Role             string             `bson:"role" json:"role"`
	Permissions      []string           `bson:"permissions" json:"permissions"`
	Status           string             `bson:"status" json:"status"`
	Pin              string             `bson:"pin,omitempty" json:"-"`
	PinDeviceID      string             `bson:"pinDeviceID,omitempty" json:"pinDeviceID,omitempty"`
	PinSetupRequired bool               `bson:"pinSetupRequired" json:"pinSetupRequired"`
	LastLoginAt      *time.Time         `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) HasPermission(perm string) bool {
	if u.Role == RoleAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

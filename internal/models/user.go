package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleDeveloper    = "developer"
	RoleOrganization = "organization"
)

// User is a dashboard account
type User struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FullName       string              `bson:"fullname" json:"fullname"`
	Email          string              `bson:"email" json:"email"`
	HPassword      string              `bson:"password" json:"-"`
	Role           string              `bson:"role" json:"role"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
}

type RegisterRequest struct {
	FullName       string `json:"fullname"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

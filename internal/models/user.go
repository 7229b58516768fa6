package models

import (
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

// Role separates the two sides of the marketplace.
type Role string

const (
	RoleHomeowner  Role = "homeowner"
	RoleContractor Role = "contractor"
)

type User struct {
	gorm.Model  `json:"-"`
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name"`
	Email       string `json:"email" gorm:"uniqueIndex"`
	Role        Role   `json:"role" gorm:"size:20;index"`
	Password    string `json:"-"` // bcrypt hash, never serialized
	FirebaseUID string `json:"firebase_uid,omitempty" gorm:"uniqueIndex"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ToCompact returns the public projection used when resolving display names.
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		FirebaseUID: u.FirebaseUID,
		Name:        u.Name,
		Role:        u.Role,
		AvatarURL:   u.AvatarURL,
	}
}

// UserCompact is the minimal user shape embedded in API responses.
type UserCompact struct {
	FirebaseUID string `json:"firebase_uid"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type CreateUserRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Role        Role   `json:"role" validate:"required,oneof=homeowner contractor"`
	FirebaseUID string `json:"firebase_uid" validate:"required"`
}

type CreateLocalUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Role     Role   `json:"role" validate:"required,oneof=homeowner contractor"`
	Password string `json:"password" validate:"required,min=8"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID      uint   `json:"user_id"`
	FirebaseUID string `json:"firebase_uid"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

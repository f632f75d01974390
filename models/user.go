// models/user.go
package models

import (
	"encoding/json"
	"errors"
)

const (
	RolePatient  = "patient"
	RoleHospital = "hospital"
	RoleAdmin    = "admin"
)

// SessionUser is the authenticated identity held by the session store.
type SessionUser struct {
	ID     FlexID `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Gender string `json:"gender,omitempty"`
	Role   string `json:"role"`
}

var ErrIncompleteUser = errors.New("user record is missing id or role")

// UnmarshalJSON accepts both "id" and "_id" and rejects records without an
// identifier or role.
func (u *SessionUser) UnmarshalJSON(data []byte) error {
	type alias SessionUser
	var raw struct {
		alias
		MongoID FlexID `json:"_id"`
		Mobile  string `json:"phoneNumber"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = SessionUser(raw.alias)
	u.ID = FirstID(u.ID, raw.MongoID)
	if u.Phone == "" {
		u.Phone = raw.Mobile
	}
	if u.ID.Empty() || u.Role == "" {
		return ErrIncompleteUser
	}
	return nil
}

// IsStaff reports whether the user belongs to the hospital side of the
// two-way role split.
func (u SessionUser) IsStaff() bool {
	return u.Role == RoleHospital || u.Role == RoleAdmin
}

// LoginRequest is sent to the backend login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is sent to the backend register endpoint.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Role     string `json:"role,omitempty"`
}

// AuthResponse contains the bearer token and the user it belongs to.
type AuthResponse struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}

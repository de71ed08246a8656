// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a stored account. Password holds the bcrypt digest and is never
// serialized.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	Fullname    string    `json:"fullname"`
	DisplayName *string   `json:"display_name"`
	Avatar      *string   `json:"avatar"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserFields is a partial update of a User. Nil fields are left unchanged.
type UserFields struct {
	Email       *string
	Password    *string
	Fullname    *string
	DisplayName *string
	Avatar      *string
}

// Empty reports whether no field is set.
func (f UserFields) Empty() bool {
	return f.Email == nil && f.Password == nil && f.Fullname == nil &&
		f.DisplayName == nil && f.Avatar == nil
}

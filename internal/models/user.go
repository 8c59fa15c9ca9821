package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is keyed by WhatsApp number in E.164 form (+55...). Customers are
// created at first checkout; admins carry the admin role and a password hash.
type User struct {
	bun.BaseModel `bun:"table:users"`

	Whatsapp  string    `bun:"whatsapp,pk" json:"whatsapp"`
	Name      string    `bun:"name" json:"name"`
	ImgURL    string    `bun:"img_url,nullzero" json:"img_url,omitempty"`
	Roles     []string  `bun:"roles,type:jsonb" json:"roles"`
	Password  string    `bun:"password,nullzero" json:"-"`
	Active    bool      `bun:"active" json:"active"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type RegisterUserRequest struct {
	Name     string `json:"name"`
	Whatsapp string `json:"whatsapp"`
}

type LoginRequest struct {
	Whatsapp string `json:"whatsapp"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  struct {
		Whatsapp string   `json:"whatsapp"`
		Name     string   `json:"name"`
		Roles    []string `json:"roles"`
	} `json:"user"`
}

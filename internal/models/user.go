package models

import "time"

type User struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"` // argon2id hash, never serialised
}

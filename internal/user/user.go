// Package user holds shop accounts and their password hashes.
package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("user: not found")
	ErrEmailTaken = errors.New("user: email already registered")
)

type CartItem struct {
	ProductID string
	Quantity  int
}

type User struct {
	// ID is the hex form of the record's ObjectID.
	ID           string
	Email        string
	PasswordHash string
	Cart         []CartItem
	CreatedAt    time.Time
}

// Store looks users up and creates them. Lookups of unknown or malformed
// ids return ErrNotFound.
type Store interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
}

// NormalizeEmail is applied to every stored and looked-up address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repository lookups that match no user.
var ErrNotFound = errors.New("user not found")

// Repository defines persistence operations for requesters.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByExternalID(ctx context.Context, source string, externalID int64) (*User, error)
}

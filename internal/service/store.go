package service

import (
	"context"
	"time"

	"callcenter-ops/internal/model"
)

// UserStore is the persistence surface the auth core needs. Implemented by
// repository.UserRepository; faked in tests.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error

	// Reset triple operations. SetResetToken overwrites any prior request;
	// IncrementResetAttempts and ConsumeResetToken must be atomic so
	// concurrent reset attempts for one user serialize on the row.
	SetResetToken(ctx context.Context, userID int64, tokenHash string, expiry time.Time) error
	ClearResetToken(ctx context.Context, userID int64) error
	IncrementResetAttempts(ctx context.Context, userID int64) error
	ConsumeResetToken(ctx context.Context, userID int64, passwordHash string) (bool, error)

	ListByRole(ctx context.Context, role model.Role) ([]model.PublicUser, error)
	Delete(ctx context.Context, id int64) error
}

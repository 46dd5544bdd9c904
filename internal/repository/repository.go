// Package repository declares the storage contracts the service layer depends on.
package repository

import (
	"context"

	"github.com/sakif/social-graph/internal/model"
)

// UserRepository is the Identity Store.
//
// Every write is a whole-document write: Create and Save persist the user's
// identity fields, friend lists and embedded posts together, or not at all.
// There is no multi-document transaction; callers that touch two users issue
// two Saves.
//
// Errors: apperror.ErrNotFound for an unknown id or email, apperror.ErrConflict
// when the email is already taken.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Save(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/auth"
	"github.com/sakif/social-graph/internal/events"
	"github.com/sakif/social-graph/internal/model"
	"github.com/sakif/social-graph/internal/pairlock"
	"github.com/sakif/social-graph/internal/repository"
	"github.com/sakif/social-graph/internal/validate"
)

// UserService reads and edits accounts.
type UserService struct {
	base
	passwords *auth.PasswordService
}

func NewUserService(
	repo repository.UserRepository,
	passwords *auth.PasswordService,
	locks pairlock.Locker,
	publisher events.Publisher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		base:      newBase(repo, locks, publisher, logger),
		passwords: passwords,
	}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.load(ctx, id)
}

// Update replaces the profile fields of user id. An empty Password keeps the
// current hash; an empty image keeps the current picture. Changing the e-mail
// to one owned by another account is a Conflict.
func (s *UserService) Update(ctx context.Context, id string, in validate.UserInput, image string) (*model.User, error) {
	if err := validate.ProfileUpdate(in); err != nil {
		return nil, err
	}
	in = in.Normalize()

	unlock, err := s.lock(ctx, id, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != user.Email {
		other, err := s.repo.FindByEmail(ctx, in.Email)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "a user with this email is already registered",
				Field:   "email",
			}
		case err != nil && !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("checking email: %w", err)
		}
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Email = in.Email
	user.AboutMe = in.AboutMe
	if image != "" {
		user.Image = image
	}
	if in.Password != "" {
		hash, err := s.passwords.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", slog.String("userID", user.ID))
	return user, nil
}

// Delete removes the account with its posts and returns the removed record.
// Former friends are then edited one by one to drop the id from their
// friendsList; a failure there is logged and does not undo the delete.
func (s *UserService) Delete(ctx context.Context, id string) (*model.User, error) {
	unlock, err := s.lock(ctx, id, id)
	if err != nil {
		return nil, err
	}
	removed, err := s.repo.Delete(ctx, id)
	unlock()
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to delete user",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("deleting user %s: %w", id, err)
	}

	s.logger.Info("user deleted", slog.String("userID", id))
	s.publish(ctx, events.SubjectUserDeleted, events.UserEvent{UserID: id, Email: removed.Email})

	for _, friendID := range removed.FriendsList.IDs() {
		if err := s.dropFriend(ctx, friendID, id); err != nil {
			s.logger.Warn("failed to remove deleted user from friends list",
				slog.String("friendID", friendID),
				slog.String("deletedID", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return removed, nil
}

func (s *UserService) dropFriend(ctx context.Context, ownerID, friendID string) error {
	unlock, err := s.lock(ctx, ownerID, ownerID)
	if err != nil {
		return err
	}
	defer unlock()

	owner, err := s.load(ctx, ownerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}
	removedFriend := owner.FriendsList.Remove(friendID)
	removedPending := owner.PendingRequest.Remove(friendID)
	if removedFriend == 0 && removedPending == 0 {
		return nil
	}
	return s.save(ctx, owner)
}

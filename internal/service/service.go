// Package service contains the business rules of the social graph.
//
// Handlers parse HTTP and call into a service with plain values; services
// validate, take the pair lock for the users they touch, load whole user
// documents, mutate them in memory and save them back through
// repository.UserRepository. A service never sees an *http.Request.
//
// Every mutation follows the same discipline:
//
//  1. validate input before touching the store
//  2. lock every user id that will be written (pairlock sorts them)
//  3. load all participants, failing with NotFound before any mutation
//  4. apply the in-memory changes
//  5. save in a fixed order, surfacing a failed second save as PartialFailure
//  6. publish an event; publish errors are logged and otherwise ignored
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/events"
	"github.com/sakif/social-graph/internal/model"
	"github.com/sakif/social-graph/internal/pairlock"
	"github.com/sakif/social-graph/internal/repository"
)

// base holds what every service needs. It is embedded, not exported.
type base struct {
	repo      repository.UserRepository
	locks     pairlock.Locker
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func newBase(repo repository.UserRepository, locks pairlock.Locker, publisher events.Publisher, logger *slog.Logger) base {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return base{
		repo:      repo,
		locks:     locks,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// lock takes the pair lock for a and b. Pass the same id twice for one user.
func (b *base) lock(ctx context.Context, a, c string) (func(), error) {
	unlock, err := b.locks.Lock(ctx, a, c)
	if err != nil {
		return nil, fmt.Errorf("locking users %s and %s: %w", a, c, err)
	}
	return unlock, nil
}

// load fetches one user. NotFound passes through untouched so handlers can
// map it; other failures are logged and wrapped.
func (b *base) load(ctx context.Context, id string) (*model.User, error) {
	u, err := b.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		b.logger.Error("failed to load user",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	return u, nil
}

func (b *base) save(ctx context.Context, u *model.User) error {
	if err := b.repo.Save(ctx, u); err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrConflict) {
			return err
		}
		b.logger.Error("failed to save user",
			slog.String("id", u.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("saving user %s: %w", u.ID, err)
	}
	return nil
}

// saveBoth persists first then second. If the second save fails after the
// first succeeded the records are asymmetric and the caller gets a
// PartialFailure naming which side is stale.
func (b *base) saveBoth(ctx context.Context, op string, first, second *model.User) error {
	if err := b.save(ctx, first); err != nil {
		return err
	}
	if err := b.save(ctx, second); err != nil {
		b.logger.Error("two-sided update left incomplete",
			slog.String("op", op),
			slog.String("saved", first.ID),
			slog.String("unsaved", second.ID),
			slog.String("error", err.Error()),
		)
		return apperror.PartialFailure(
			fmt.Sprintf("%s: saved user %s but not user %s", op, first.ID, second.ID), err)
	}
	return nil
}

func (b *base) publish(ctx context.Context, subject string, payload any) {
	if err := b.publisher.Publish(ctx, subject, payload); err != nil {
		b.logger.Warn("failed to publish event",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
	}
}

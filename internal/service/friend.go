package service

import (
	"context"
	"log/slog"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/events"
	"github.com/sakif/social-graph/internal/pairlock"
	"github.com/sakif/social-graph/internal/repository"
)

// FriendService moves a pair of users between stranger, pending and friends.
//
// The state is never stored directly. It is read off two lists:
// recipient.PendingRequest holds requesters, and FriendsList on both sides
// holds friends. Every transition locks both ids, loads both documents, and
// only then mutates. Two-sided writes save the acting user first and the
// other party second.
type FriendService struct {
	base
}

func NewFriendService(
	repo repository.UserRepository,
	locks pairlock.Locker,
	publisher events.Publisher,
	logger *slog.Logger,
) *FriendService {
	return &FriendService{base: newBase(repo, locks, publisher, logger)}
}

// SendRequest records requesterID in recipientID's pending requests and
// returns the recipient's pending list. Re-sending is a no-op. Sending to a
// friend, on either side of the pair, is a Conflict.
func (s *FriendService) SendRequest(ctx context.Context, requesterID, recipientID string) ([]string, error) {
	if requesterID == recipientID {
		return nil, apperror.ValidationFailed("friendId", "cannot send a friend request to yourself")
	}

	unlock, err := s.lock(ctx, requesterID, recipientID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	requester, err := s.load(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.load(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	if recipient.FriendsList.Contains(requesterID) || requester.FriendsList.Contains(recipientID) {
		return nil, apperror.AlreadyFriends(requesterID, recipientID)
	}

	if !recipient.PendingRequest.Add(requesterID) {
		s.logger.Debug("friend request already pending",
			slog.String("requesterID", requesterID),
			slog.String("recipientID", recipientID),
		)
		return recipient.PendingRequest.IDs(), nil
	}

	if err := s.save(ctx, recipient); err != nil {
		return nil, err
	}

	s.logger.Info("friend request sent",
		slog.String("requesterID", requesterID),
		slog.String("recipientID", recipientID),
	)
	s.publish(ctx, events.SubjectFriendRequested, events.FriendEvent{UserID: requesterID, FriendID: recipientID})

	return recipient.PendingRequest.IDs(), nil
}

// AcceptRequest makes recipientID and requesterID friends and returns the
// recipient's friends list. It is a Conflict only when both sides already list
// each other; a one-sided friendship left behind by an earlier partial
// failure is completed instead. Pending entries between the two are cleared
// in both directions.
func (s *FriendService) AcceptRequest(ctx context.Context, recipientID, requesterID string) ([]string, error) {
	if requesterID == recipientID {
		return nil, apperror.ValidationFailed("friendId", "cannot befriend yourself")
	}

	unlock, err := s.lock(ctx, recipientID, requesterID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	recipient, err := s.load(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	requester, err := s.load(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	if recipient.FriendsList.Contains(requesterID) && requester.FriendsList.Contains(recipientID) {
		return nil, apperror.AlreadyFriends(recipientID, requesterID)
	}

	recipient.FriendsList.Add(requesterID)
	requester.FriendsList.Add(recipientID)
	recipient.PendingRequest.Remove(requesterID)
	requester.PendingRequest.Remove(recipientID)

	if err := s.saveBoth(ctx, "accept friend request", recipient, requester); err != nil {
		return nil, err
	}

	s.logger.Info("friend request accepted",
		slog.String("recipientID", recipientID),
		slog.String("requesterID", requesterID),
	)
	s.publish(ctx, events.SubjectFriendAccepted, events.FriendEvent{UserID: recipientID, FriendID: requesterID})

	return recipient.FriendsList.IDs(), nil
}

// DenyRequest drops every pending request from requesterID on recipientID and
// returns the recipient's pending list. Denying a request that is not there
// is not an error. The requester does not need to exist any more.
func (s *FriendService) DenyRequest(ctx context.Context, recipientID, requesterID string) ([]string, error) {
	unlock, err := s.lock(ctx, recipientID, recipientID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	recipient, err := s.load(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	if recipient.PendingRequest.Remove(requesterID) == 0 {
		return recipient.PendingRequest.IDs(), nil
	}

	if err := s.save(ctx, recipient); err != nil {
		return nil, err
	}

	s.logger.Info("friend request denied",
		slog.String("recipientID", recipientID),
		slog.String("requesterID", requesterID),
	)
	s.publish(ctx, events.SubjectFriendDenied, events.FriendEvent{UserID: recipientID, FriendID: requesterID})

	return recipient.PendingRequest.IDs(), nil
}

// Unfriend removes the friendship from both sides and returns userID's
// friends list. Unfriending a stranger is a no-op.
func (s *FriendService) Unfriend(ctx context.Context, userID, friendID string) ([]string, error) {
	if userID == friendID {
		return nil, apperror.ValidationFailed("friendId", "cannot unfriend yourself")
	}

	unlock, err := s.lock(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	friend, err := s.load(ctx, friendID)
	if err != nil {
		return nil, err
	}

	userChanged := user.FriendsList.Remove(friendID) > 0
	friendChanged := friend.FriendsList.Remove(userID) > 0

	switch {
	case userChanged && friendChanged:
		err = s.saveBoth(ctx, "unfriend", user, friend)
	case userChanged:
		err = s.save(ctx, user)
	case friendChanged:
		err = s.save(ctx, friend)
	default:
		return user.FriendsList.IDs(), nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("friend removed",
		slog.String("userID", userID),
		slog.String("friendID", friendID),
	)
	s.publish(ctx, events.SubjectFriendRemoved, events.FriendEvent{UserID: userID, FriendID: friendID})

	return user.FriendsList.IDs(), nil
}

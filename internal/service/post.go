package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/events"
	"github.com/sakif/social-graph/internal/model"
	"github.com/sakif/social-graph/internal/pairlock"
	"github.com/sakif/social-graph/internal/repository"
	"github.com/sakif/social-graph/internal/validate"
)

// PostService manages the posts embedded in a user document. A post is only
// durable once its owner is saved, so every write is a save of the owner.
type PostService struct {
	base
}

func NewPostService(
	repo repository.UserRepository,
	locks pairlock.Locker,
	publisher events.Publisher,
	logger *slog.Logger,
) *PostService {
	return &PostService{base: newBase(repo, locks, publisher, logger)}
}

// CreatePost appends a new post to userID's posts.
func (s *PostService) CreatePost(ctx context.Context, userID string, in validate.PostInput) (*model.Post, error) {
	if err := validate.Post(in); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, userID, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	owner, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := model.NewPost(strings.TrimSpace(in.Body), in.Likes, in.Dislikes, in.Picture, s.now())
	owner.AddPost(post)

	if err := s.save(ctx, owner); err != nil {
		return nil, err
	}

	s.logger.Info("post created",
		slog.String("userID", userID),
		slog.String("postID", post.ID),
	)
	s.publish(ctx, events.SubjectPostCreated, events.PostEvent{UserID: userID, PostID: post.ID})

	return &post, nil
}

// ListPosts returns userID's posts, in stored order or newest-modified first.
func (s *PostService) ListPosts(ctx context.Context, userID string, byModified bool) ([]model.Post, error) {
	owner, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if byModified {
		return model.SortedByModified(owner.Posts), nil
	}
	if owner.Posts == nil {
		return []model.Post{}, nil
	}
	return owner.Posts, nil
}

func (s *PostService) GetPost(ctx context.Context, userID, postID string) (*model.Post, error) {
	owner, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	post := owner.Post(postID)
	if post == nil {
		return nil, apperror.NotFound("post", postID)
	}
	p := *post
	return &p, nil
}

// EditPost overwrites body, counters and picture. DateModified never moves
// backwards, even if the clock does.
func (s *PostService) EditPost(ctx context.Context, userID, postID string, in validate.PostInput) (*model.Post, error) {
	if err := validate.Post(in); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, userID, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	owner, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	post := owner.Post(postID)
	if post == nil {
		return nil, apperror.NotFound("post", postID)
	}

	post.Body = strings.TrimSpace(in.Body)
	post.Likes = in.Likes
	post.Dislikes = in.Dislikes
	post.Picture = in.Picture
	if now := s.now(); now.After(post.DateModified) {
		post.DateModified = now
	}
	edited := *post

	if err := s.save(ctx, owner); err != nil {
		return nil, err
	}

	s.logger.Info("post updated",
		slog.String("userID", userID),
		slog.String("postID", postID),
	)
	s.publish(ctx, events.SubjectPostUpdated, events.PostEvent{UserID: userID, PostID: postID})

	return &edited, nil
}

// DeletePost excises the post and returns the owner as saved.
func (s *PostService) DeletePost(ctx context.Context, userID, postID string) (*model.User, error) {
	unlock, err := s.lock(ctx, userID, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	owner, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !owner.RemovePost(postID) {
		return nil, apperror.NotFound("post", postID)
	}

	if err := s.save(ctx, owner); err != nil {
		return nil, err
	}

	s.logger.Info("post deleted",
		slog.String("userID", userID),
		slog.String("postID", postID),
	)
	s.publish(ctx, events.SubjectPostDeleted, events.PostEvent{UserID: userID, PostID: postID})

	return owner, nil
}

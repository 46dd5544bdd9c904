// Package events announces social graph changes after they are persisted.
package events

import (
	"context"
	"time"
)

const (
	StreamName     = "SOCIAL"
	SubjectPattern = "social.>"
)

const (
	SubjectUserRegistered  = "social.user.registered"
	SubjectUserDeleted     = "social.user.deleted"
	SubjectFriendRequested = "social.friend.requested"
	SubjectFriendAccepted  = "social.friend.accepted"
	SubjectFriendDenied    = "social.friend.denied"
	SubjectFriendRemoved   = "social.friend.removed"
	SubjectPostCreated     = "social.post.created"
	SubjectPostUpdated     = "social.post.updated"
	SubjectPostDeleted     = "social.post.deleted"
)

// Publisher sends one event. Callers treat a failure as non-fatal: the state
// change it describes has already been saved.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Envelope is the JSON body of every message.
type Envelope struct {
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// UserEvent is the payload of the user subjects.
type UserEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// FriendEvent is the payload of the friend subjects. UserID acted on FriendID.
type FriendEvent struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
}

// PostEvent is the payload of the post subjects.
type PostEvent struct {
	UserID string `json:"userId"`
	PostID string `json:"postId"`
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) Publish(context.Context, string, any) error { return nil }

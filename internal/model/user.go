// Package model defines the data structures used throughout the application.
package model

import (
	"slices"
	"time"
)

// User is both an account and a node in the social graph.
//
// Relationship state is stored on the users themselves, not in a separate
// table:
//   - FriendsList is symmetric: B in A.FriendsList iff A in B.FriendsList.
//   - PendingRequest lives on the recipient and lists the requesters.
//
// A user is persisted as one document (one row), so a save either writes the
// identity fields, both lists and every embedded post, or nothing at all.
type User struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // never serialized to clients
	Image          string    `json:"image,omitempty"`
	AboutMe        string    `json:"aboutMe,omitempty"`
	FriendsList    RefSet    `json:"friendsList"`
	PendingRequest RefSet    `json:"pendingRequest"`
	Posts          []Post    `json:"posts"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Post returns a pointer into u.Posts for the given id, or nil.
// The pointer is only valid until the next AddPost or RemovePost.
func (u *User) Post(id string) *Post {
	for i := range u.Posts {
		if u.Posts[i].ID == id {
			return &u.Posts[i]
		}
	}
	return nil
}

// AddPost appends p to the user's posts.
func (u *User) AddPost(p Post) {
	u.Posts = append(u.Posts, p)
}

// RemovePost excises the post with the given id. It reports whether a post was removed.
func (u *User) RemovePost(id string) bool {
	for i := range u.Posts {
		if u.Posts[i].ID == id {
			u.Posts = append(u.Posts[:i], u.Posts[i+1:]...)
			return true
		}
	}
	return false
}

// Relationship is the derived state between two users. It is never stored.
type Relationship string

const (
	Stranger Relationship = "stranger"
	Pending  Relationship = "pending"
	Friends  Relationship = "friends"
)

// RelationshipTo reports how other relates to u from u's records alone:
// Friends if other is in u's friends list, Pending if other has a request
// waiting on u, Stranger otherwise.
func (u *User) RelationshipTo(otherID string) Relationship {
	switch {
	case u.FriendsList.Contains(otherID):
		return Friends
	case u.PendingRequest.Contains(otherID):
		return Pending
	default:
		return Stranger
	}
}

// Clone returns a deep copy of u. The lists and posts of the copy share no
// memory with the original.
func (u *User) Clone() *User {
	c := *u
	c.FriendsList = NewRefSet(u.FriendsList.ids...)
	c.PendingRequest = NewRefSet(u.PendingRequest.ids...)
	if u.Posts != nil {
		c.Posts = slices.Clone(u.Posts)
	}
	return &c
}

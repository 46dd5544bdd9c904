package model

import (
	"slices"
	"time"

	"github.com/rs/xid"
)

// Post is a piece of content embedded in its owner's User record.
//
// A Post has no table or collection of its own: it is created by appending to
// User.Posts and is only durable once the owning user is saved. Its ID is
// unique within the owner's posts; nothing looks a post up without the owner.
type Post struct {
	ID           string    `json:"id"`
	Body         string    `json:"body"`
	Likes        int       `json:"likes"`
	Dislikes     int       `json:"dislikes"`
	Picture      string    `json:"picture,omitempty"`
	DateCreated  time.Time `json:"dateCreated"`
	DateModified time.Time `json:"dateModified"`
}

// NewPost builds a post stamped with now for both timestamps.
func NewPost(body string, likes, dislikes int, picture string, now time.Time) Post {
	return Post{
		ID:           xid.New().String(),
		Body:         body,
		Likes:        likes,
		Dislikes:     dislikes,
		Picture:      picture,
		DateCreated:  now,
		DateModified: now,
	}
}

// SortedByModified returns a copy of posts ordered by DateModified, newest first.
// Posts with equal timestamps keep their stored order.
func SortedByModified(posts []Post) []Post {
	out := slices.Clone(posts)
	slices.SortStableFunc(out, func(a, b Post) int {
		return b.DateModified.Compare(a.DateModified)
	})
	return out
}

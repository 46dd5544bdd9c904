// Package validate is the validation collaborator: it checks the shape of
// registration, login, profile and post payloads before any store access.
//
// Each function returns nil or the first *apperror.AppError found, whose
// Field names the offending input and whose Message is safe to show users.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/social-graph/internal/apperror"
)

const (
	MinNameLength     = 2
	MaxNameLength     = 50
	MaxEmailLength    = 255
	MinPasswordLength = 5
	MaxPasswordLength = 72 // bcrypt input limit
	MaxAboutMeLength  = 1000
	MaxPostLength     = 2000
	MaxPictureLength  = 1024
)

// UserInput is the payload for registration and profile updates.
type UserInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AboutMe   string `json:"aboutMe"`
}

// Normalize trims names and lower-cases the e-mail.
func (in UserInput) Normalize() UserInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = NormalizeEmail(in.Email)
	in.AboutMe = strings.TrimSpace(in.AboutMe)
	return in
}

// LoginInput is the payload for login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PostInput is the payload for creating or editing a post.
type PostInput struct {
	Body     string `json:"body"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	Picture  string `json:"picture"`
}

// NormalizeEmail trims and lower-cases an address; e-mail is the unique key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Registration validates a new account. Every field except AboutMe is required.
func Registration(in UserInput) error {
	in = in.Normalize()
	if err := name("firstName", in.FirstName); err != nil {
		return err
	}
	if err := name("lastName", in.LastName); err != nil {
		return err
	}
	if err := email(in.Email); err != nil {
		return err
	}
	if err := password(in.Password); err != nil {
		return err
	}
	return aboutMe(in.AboutMe)
}

// ProfileUpdate validates an edit of an existing account. The password may be
// left empty to keep the current one.
func ProfileUpdate(in UserInput) error {
	in = in.Normalize()
	if err := name("firstName", in.FirstName); err != nil {
		return err
	}
	if err := name("lastName", in.LastName); err != nil {
		return err
	}
	if err := email(in.Email); err != nil {
		return err
	}
	if in.Password != "" {
		if err := password(in.Password); err != nil {
			return err
		}
	}
	return aboutMe(in.AboutMe)
}

// Login validates credentials shape only; it says nothing about correctness.
func Login(in LoginInput) error {
	if err := email(NormalizeEmail(in.Email)); err != nil {
		return err
	}
	if in.Password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(in.Password) > MaxPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordLength))
	}
	return nil
}

// Post validates post content and counters.
func Post(in PostInput) error {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return apperror.ValidationFailed("body", "post body is required")
	}
	if utf8.RuneCountInString(body) > MaxPostLength {
		return apperror.ValidationFailed("body",
			fmt.Sprintf("post body must be %d characters or less", MaxPostLength))
	}
	if in.Likes < 0 {
		return apperror.ValidationFailed("likes", "likes must not be negative")
	}
	if in.Dislikes < 0 {
		return apperror.ValidationFailed("dislikes", "dislikes must not be negative")
	}
	if len(in.Picture) > MaxPictureLength {
		return apperror.ValidationFailed("picture",
			fmt.Sprintf("picture reference must be %d characters or less", MaxPictureLength))
	}
	return nil
}

func name(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return apperror.ValidationFailed(field, field+" is required")
	}
	if n < MinNameLength || n > MaxNameLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be between %d and %d characters", field, MinNameLength, MaxNameLength))
	}
	return nil
}

func email(value string) error {
	if value == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if len(value) > MaxEmailLength {
		return apperror.ValidationFailed("email",
			fmt.Sprintf("email must be %d characters or less", MaxEmailLength))
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return apperror.ValidationFailed("email", "email must be a valid address")
	}
	return nil
}

func password(value string) error {
	if value == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(value) < MinPasswordLength || len(value) > MaxPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be between %d and %d bytes", MinPasswordLength, MaxPasswordLength))
	}
	return nil
}

func aboutMe(value string) error {
	if utf8.RuneCountInString(value) > MaxAboutMeLength {
		return apperror.ValidationFailed("aboutMe",
			fmt.Sprintf("aboutMe must be %d characters or less", MaxAboutMeLength))
	}
	return nil
}

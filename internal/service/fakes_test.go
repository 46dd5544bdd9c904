package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/auth"
	"github.com/sakif/social-graph/internal/model"
	"github.com/sakif/social-graph/internal/pairlock"
	"github.com/sakif/social-graph/internal/repository"
	"github.com/sakif/social-graph/internal/validate"
)

var _ repository.UserRepository = (*fakeUserRepo)(nil)

// fakeUserRepo is an in-memory repository.UserRepository. It stores and
// returns clones, so a service mutating a loaded user changes nothing until
// it calls Save, just like the real store.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	order  []string
	nextID int

	// saveErr makes Save fail for the given user id.
	saveErr map[string]error
	// listErr makes List fail.
	listErr error
	// saves records the id of every successful Save, in order.
	saves []string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:   make(map[string]*model.User),
		saveErr: make(map[string]error),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user.Clone()
	f.order = append(f.order, user.ID)
	return nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u.Clone(), nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) Save(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.saveErr[user.ID]; err != nil {
		return err
	}
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	for id, u := range f.users {
		if id != user.ID && u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	user.UpdatedAt = time.Now().UTC()
	f.users[user.ID] = user.Clone()
	f.saves = append(f.saves, user.ID)
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	delete(f.users, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return u, nil
}

func (f *fakeUserRepo) List(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.User, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.users[id].Clone())
	}
	return out, nil
}

// get returns the stored record, bypassing the service under test.
func (f *fakeUserRepo) get(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := f.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fakeUserRepo) failSave(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr[id] = err
}

func (f *fakeUserRepo) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// fakePublisher records every event it is asked to publish.
type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

var errDiskFull = errors.New("disk full")

// testEnv wires every service to the same fakes.
type testEnv struct {
	repo    *fakeUserRepo
	pub     *fakePublisher
	tokens  *auth.TokenService
	auth    *AuthService
	users   *UserService
	friends *FriendService
	posts   *PostService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	passwords := auth.NewPasswordService(bcrypt.MinCost)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newFakeUserRepo()
	pub := &fakePublisher{}
	locks := pairlock.NewLocal()

	return &testEnv{
		repo:    repo,
		pub:     pub,
		tokens:  tokens,
		auth:    NewAuthService(repo, tokens, passwords, pub, logger),
		users:   NewUserService(repo, passwords, locks, pub, logger),
		friends: NewFriendService(repo, locks, pub, logger),
		posts:   NewPostService(repo, locks, pub, logger),
	}
}

// register creates a user with the given first name and e-mail.
func (e *testEnv) register(t *testing.T, firstName, email string) *model.User {
	t.Helper()
	res, err := e.auth.Register(context.Background(), validate.UserInput{
		FirstName: firstName,
		LastName:  "Tester",
		Email:     email,
		Password:  "password123",
	}, "")
	require.NoError(t, err)
	return res.User
}

// befriend runs a full send/accept cycle between requester and recipient.
func (e *testEnv) befriend(t *testing.T, requesterID, recipientID string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.friends.SendRequest(ctx, requesterID, recipientID)
	require.NoError(t, err)
	_, err = e.friends.AcceptRequest(ctx, recipientID, requesterID)
	require.NoError(t, err)
}

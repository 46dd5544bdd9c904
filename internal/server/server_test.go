package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-graph/internal/auth"
	"github.com/sakif/social-graph/internal/config"
	"github.com/sakif/social-graph/internal/model"
	"github.com/sakif/social-graph/internal/server"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Storage: config.StorageConfig{
			DBPath:         ":memory:",
			UploadDir:      t.TempDir(),
			MaxUploadBytes: 1 << 16,
		},
		Auth: config.AuthConfig{
			JWTSecret:  "server-test-secret-0123456789",
			TokenTTL:   time.Hour,
			BcryptCost: 4,
		},
		Log: config.LogConfig{Level: slog.LevelError},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := server.New(context.Background(), cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testServer{t: t, srv: ts}
}

// do sends a JSON request and returns the response with its body read.
func (ts *testServer) do(method, path, token string, body any) (*http.Response, []byte) {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(ts.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	return ts.send(req)
}

func (ts *testServer) send(req *http.Request) (*http.Response, []byte) {
	ts.t.Helper()
	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return resp, data
}

type account struct {
	user  model.User
	token string
}

func (ts *testServer) register(firstName, email string) account {
	ts.t.Helper()
	resp, body := ts.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"firstName": firstName,
		"lastName":  "Tester",
		"email":     email,
		"password":  "password123",
	})
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode, string(body))

	var a account
	require.NoError(ts.t, json.Unmarshal(body, &a.user))
	a.token = resp.Header.Get(auth.TokenHeader)
	require.NotEmpty(ts.t, a.token)
	return a
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "alice@example.com")

	assert.Equal(t, "alice@example.com", alice.user.Email)
	assert.Empty(t, alice.user.FriendsList.IDs())

	resp, body := ts.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "ALICE@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	login := decode[map[string]string](t, body)
	assert.NotEmpty(t, login["token"])
	assert.Equal(t, login["token"], resp.Header.Get(auth.TokenHeader))

	resp, body = ts.do(http.MethodGet, "/api/users/me", login["token"], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, alice.user.ID, decode[model.User](t, body).ID)
	assert.NotContains(t, string(body), "password")

	resp, _ = ts.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = ts.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"firstName": "Alice",
		"lastName":  "Again",
		"email":     "alice@example.com",
		"password":  "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "email", decode[map[string]string](t, body)["field"])
}

func TestRegister_Validation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"firstName": "A",
		"lastName":  "Tester",
		"email":     "a@example.com",
		"password":  "password123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "firstName", decode[map[string]string](t, body)["field"])

	resp, _ = ts.do(http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister_MultipartWithImage(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"firstName": "Pic",
		"lastName":  "Tester",
		"email":     "pic@example.com",
		"password":  "password123",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("image", "me.png")
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/users/register", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, body := ts.send(req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	user := decode[model.User](t, body)
	require.NotEmpty(t, user.Image)
	assert.True(t, strings.HasSuffix(user.Image, ".png"))

	resp, img := ts.do(http.MethodGet, "/uploads/"+path.Base(user.Image), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pngHeader, img)
}

func TestFriendScenario(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "alice@example.com")
	bob := ts.register("Bob", "bob@example.com")
	a, b := alice.user.ID, bob.user.ID

	// Bob asks Alice.
	resp, body := ts.do(http.MethodPost, "/api/users/"+b+"/request/"+a, bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, []string{b}, decode[[]string](t, body))

	// Sending again changes nothing.
	resp, body = ts.do(http.MethodPost, "/api/users/"+b+"/request/"+a, bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{b}, decode[[]string](t, body))

	// Alice accepts.
	resp, body = ts.do(http.MethodPost, "/api/users/"+a+"/pending/"+b, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, []string{b}, decode[[]string](t, body))

	resp, body = ts.do(http.MethodGet, "/api/users/"+b, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	storedBob := decode[model.User](t, body)
	assert.Equal(t, []string{a}, storedBob.FriendsList.IDs())

	resp, body = ts.do(http.MethodGet, "/api/users/"+a, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[model.User](t, body).PendingRequest.IDs())

	// A second accept is a conflict, and so is a new request.
	resp, _ = ts.do(http.MethodPost, "/api/users/"+a+"/pending/"+b, alice.token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = ts.do(http.MethodPost, "/api/users/"+b+"/request/"+a, bob.token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Bob unfriends Alice; both sides are cleared.
	resp, body = ts.do(http.MethodDelete, "/api/users/"+b+"/friends/"+a, bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Empty(t, decode[[]string](t, body))

	resp, body = ts.do(http.MethodGet, "/api/users/"+a, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[model.User](t, body).FriendsList.IDs())
}

func TestFriendScenario_Deny(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "alice@example.com")
	bob := ts.register("Bob", "bob@example.com")
	a, b := alice.user.ID, bob.user.ID

	resp, _ := ts.do(http.MethodPost, "/api/users/"+b+"/request/"+a, bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(http.MethodDelete, "/api/users/"+a+"/remove/"+b, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Empty(t, decode[[]string](t, body))

	// Denying again is a no-op.
	resp, _ = ts.do(http.MethodDelete, "/api/users/"+a+"/remove/"+b, alice.token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFriendRoutes_Errors(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "alice@example.com")
	bob := ts.register("Bob", "bob@example.com")
	a, b := alice.user.ID, bob.user.ID

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"no token", http.MethodPost, "/api/users/" + b + "/request/" + a, "", http.StatusUnauthorized},
		{"bad token", http.MethodPost, "/api/users/" + b + "/request/" + a, "not-a-jwt", http.StatusUnauthorized},
		{"acting for someone else", http.MethodPost, "/api/users/" + b + "/request/" + a, alice.token, http.StatusForbidden},
		{"unknown recipient", http.MethodPost, "/api/users/" + b + "/request/nobody", bob.token, http.StatusNotFound},
		{"request to self", http.MethodPost, "/api/users/" + b + "/request/" + b, bob.token, http.StatusBadRequest},
		{"accept unknown requester", http.MethodPost, "/api/users/" + a + "/pending/nobody", alice.token, http.StatusNotFound},
		{"unfriend for someone else", http.MethodDelete, "/api/users/" + a + "/friends/" + b, bob.token, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
		})
	}
}

func TestPostRoutes(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "alice@example.com")
	bob := ts.register("Bob", "bob@example.com")
	a := alice.user.ID
	postsPath := "/api/users/" + a + "/posts"

	resp, body := ts.do(http.MethodPost, postsPath, alice.token, map[string]any{"body": "first"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	first := decode[model.Post](t, body)

	resp, body = ts.do(http.MethodPost, postsPath, alice.token, map[string]any{"body": "second", "likes": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	second := decode[model.Post](t, body)
	assert.Equal(t, 2, second.Likes)

	// Someone else cannot post on Alice's account.
	resp, _ = ts.do(http.MethodPost, postsPath, bob.token, map[string]any{"body": "spam"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, postsPath, alice.token, map[string]any{"body": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Listing is public and in creation order.
	resp, body = ts.do(http.MethodGet, postsPath, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	posts := decode[[]model.Post](t, body)
	require.Len(t, posts, 2)
	assert.Equal(t, first.ID, posts[0].ID)

	resp, body = ts.do(http.MethodPut, postsPath+"/"+first.ID, alice.token, map[string]any{"body": "first, edited"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	edited := decode[model.Post](t, body)
	assert.Equal(t, "first, edited", edited.Body)
	assert.Equal(t, first.DateCreated, edited.DateCreated)
	assert.False(t, edited.DateModified.Before(first.DateModified))

	// The edited post is the most recently modified.
	resp, body = ts.do(http.MethodGet, postsPath+"/date", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	byDate := decode[[]model.Post](t, body)
	require.Len(t, byDate, 2)
	assert.Equal(t, first.ID, byDate[0].ID)

	resp, body = ts.do(http.MethodGet, postsPath+"?sort=dateModified", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, byDate, decode[[]model.Post](t, body))

	resp, body = ts.do(http.MethodGet, postsPath+"/"+second.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "second", decode[model.Post](t, body).Body)

	resp, body = ts.do(http.MethodDelete, postsPath+"/"+second.ID, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	owner := decode[model.User](t, body)
	require.Len(t, owner.Posts, 1)
	assert.Equal(t, first.ID, owner.Posts[0].ID)

	resp, _ = ts.do(http.MethodGet, postsPath+"/"+second.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(http.MethodGet, "/api/users/nobody/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "alice@example.com")
	bob := ts.register("Bob", "bob@example.com")
	a, b := alice.user.ID, bob.user.ID

	resp, _ := ts.do(http.MethodPost, "/api/users/"+b+"/request/"+a, bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(http.MethodPost, "/api/users/"+a+"/pending/"+b, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	update := map[string]string{
		"firstName": "Alicia",
		"lastName":  "Tester",
		"email":     "alicia@example.com",
		"aboutMe":   "hello",
	}
	resp, _ = ts.do(http.MethodPut, "/api/users/"+a, bob.token, update)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := ts.do(http.MethodPut, "/api/users/"+a, alice.token, update)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decode[model.User](t, body)
	assert.Equal(t, "Alicia", updated.FirstName)
	assert.Equal(t, []string{b}, updated.FriendsList.IDs())

	// Password was omitted, so the old one still works with the new e-mail.
	resp, _ = ts.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "alicia@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	update["email"] = "bob@example.com"
	resp, _ = ts.do(http.MethodPut, "/api/users/"+a, alice.token, update)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = ts.do(http.MethodDelete, "/api/users/"+a, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, a, decode[model.User](t, body).ID)

	resp, _ = ts.do(http.MethodGet, "/api/users/"+a, bob.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(http.MethodGet, "/api/users/"+b, bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[model.User](t, body).FriendsList.IDs())

	resp, body = ts.do(http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.User](t, body), 1)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

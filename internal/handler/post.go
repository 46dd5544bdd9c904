package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-graph/internal/service"
	"github.com/sakif/social-graph/internal/validate"
)

// sortByModified is the ?sort= value for newest-modified-first listings.
const sortByModified = "dateModified"

type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// HandleCreate handles POST /api/users/{userId}/posts.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, err)
		return
	}

	var in validate.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.CreatePost(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleList handles GET /api/users/{userId}/posts. Posts come back in the
// order they were created unless ?sort=dateModified is given.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("sort") == sortByModified)
}

// HandleListByDate handles GET /api/users/{userId}/posts/date.
func (h *PostHandler) HandleListByDate(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *PostHandler) list(w http.ResponseWriter, r *http.Request, byModified bool) {
	posts, err := h.posts.ListPosts(r.Context(), chi.URLParam(r, "userId"), byModified)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet handles GET /api/users/{userId}/posts/{postId}.
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetPost(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleEdit handles PUT /api/users/{userId}/posts/{postId}.
func (h *PostHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, err)
		return
	}

	var in validate.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.EditPost(r.Context(), userID, chi.URLParam(r, "postId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete handles DELETE /api/users/{userId}/posts/{postId} and
// responds with the owner as saved.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, err)
		return
	}

	owner, err := h.posts.DeletePost(r.Context(), userID, chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, owner)
}

package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/auth"
	"github.com/sakif/social-graph/internal/service"
	"github.com/sakif/social-graph/internal/upload"
	"github.com/sakif/social-graph/internal/validate"
)

// multipartOverhead is room for the text fields alongside the image.
const multipartOverhead = 1 << 20

// UserHandler serves registration, login and account endpoints.
type UserHandler struct {
	auth    *service.AuthService
	users   *service.UserService
	uploads *upload.Store
	logger  *slog.Logger
}

func NewUserHandler(
	authService *service.AuthService,
	users *service.UserService,
	uploads *upload.Store,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		auth:    authService,
		users:   users,
		uploads: uploads,
		logger:  logger,
	}
}

// HandleRegister handles POST /api/users/register. The body is JSON, or
// multipart/form-data when a profile image is attached as "image".
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	in, image, err := h.parseUserInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Register(r.Context(), in, image)
	if err != nil {
		h.discardUpload(image)
		if !isClientError(err) {
			h.logger.Error("failed to register user", slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}

	setToken(w, res.Token)
	writeJSON(w, http.StatusCreated, res.User)
}

type loginResponse struct {
	Token string `json:"token"`
}

// HandleLogin handles POST /api/users/login.
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in validate.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("failed to log in", slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}

	setToken(w, res.Token)
	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token})
}

// HandleList handles GET /api/users.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleMe handles GET /api/users/me.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGet handles GET /api/users/{userId}.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate handles PUT /api/users/{userId}. Only the account owner may call it.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, err)
		return
	}

	in, image, err := h.parseUserInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Update(r.Context(), userID, in, image)
	if err != nil {
		h.discardUpload(image)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete handles DELETE /api/users/{userId} and returns the removed user.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, err)
		return
	}

	removed, err := h.users.Delete(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.discardUpload(removed.Image)
	writeJSON(w, http.StatusOK, removed)
}

// parseUserInput reads registration or profile fields from a JSON or
// multipart body. A multipart "image" part is stored immediately and its
// reference returned; callers discard it if the operation then fails.
func (h *UserHandler) parseUserInput(w http.ResponseWriter, r *http.Request) (validate.UserInput, string, error) {
	var in validate.UserInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := decodeJSON(w, r, &in)
		return in, "", err
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		return in, "", apperror.ValidationFailed("body", "request body must be a valid multipart form within the size limit")
	}

	in = validate.UserInput{
		FirstName: r.FormValue("firstName"),
		LastName:  r.FormValue("lastName"),
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		AboutMe:   r.FormValue("aboutMe"),
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, "", nil
	}
	if err != nil {
		return in, "", apperror.ValidationFailed("image", "image could not be read")
	}
	defer file.Close()

	image, err := h.uploads.Save(file)
	if err != nil {
		return in, "", err
	}
	return in, image, nil
}

func (h *UserHandler) discardUpload(image string) {
	if image == "" {
		return
	}
	if err := h.uploads.Remove(image); err != nil {
		h.logger.Warn("failed to remove upload",
			slog.String("path", image),
			slog.String("error", err.Error()),
		)
	}
}

// isClientError reports whether err is a domain error the client caused.
func isClientError(err error) bool {
	return errors.Is(err, apperror.ErrValidation) ||
		errors.Is(err, apperror.ErrConflict) ||
		errors.Is(err, apperror.ErrUnauthorized) ||
		errors.Is(err, apperror.ErrNotFound)
}

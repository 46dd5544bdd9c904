package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-graph/internal/service"
)

// FriendHandler serves the friend request endpoints. Each responds with the
// list the operation changed, as a JSON array of user ids.
type FriendHandler struct {
	friends *service.FriendService
	logger  *slog.Logger
}

func NewFriendHandler(friends *service.FriendService, logger *slog.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, logger: logger}
}

type friendOp func(ctx context.Context, userID, friendID string) ([]string, error)

// serve runs op for the {userId}/{friendId} pair after checking that the
// caller is {userId}.
func (h *FriendHandler) serve(w http.ResponseWriter, r *http.Request, name string, op friendOp) {
	userID := chi.URLParam(r, "userId")
	friendID := chi.URLParam(r, "friendId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, err)
		return
	}

	ids, err := op(r.Context(), userID, friendID)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error(name+" failed",
				slog.String("userID", userID),
				slog.String("friendID", friendID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// HandleSendRequest handles POST /api/users/{userId}/request/{friendId}:
// {userId} asks {friendId}. Responds with {friendId}'s pending requests.
func (h *FriendHandler) HandleSendRequest(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "send friend request", h.friends.SendRequest)
}

// HandleAccept handles POST /api/users/{userId}/pending/{friendId}:
// {userId} accepts {friendId}. Responds with {userId}'s friends.
func (h *FriendHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "accept friend request", h.friends.AcceptRequest)
}

// HandleDeny handles DELETE /api/users/{userId}/remove/{friendId}.
// Responds with {userId}'s pending requests.
func (h *FriendHandler) HandleDeny(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "deny friend request", h.friends.DenyRequest)
}

// HandleUnfriend handles DELETE /api/users/{userId}/friends/{friendId}.
func (h *FriendHandler) HandleUnfriend(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "unfriend", h.friends.Unfriend)
}

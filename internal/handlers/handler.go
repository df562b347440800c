package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/swapmeet-dev/swapmeet/internal/chat"
	"github.com/swapmeet-dev/swapmeet/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	directory *chat.Directory
	gateway   *chat.Gateway
	history   *chat.HistoryReader
	pg        *store.PostgresStore
	cache     *store.RedisCache
}

// NewHandler creates a new Handler wired to the chat engine and stores.
func NewHandler(directory *chat.Directory, gateway *chat.Gateway, history *chat.HistoryReader, pg *store.PostgresStore, cache *store.RedisCache) *Handler {
	return &Handler{
		directory: directory,
		gateway:   gateway,
		history:   history,
		pg:        pg,
		cache:     cache,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// ChatError maps the engine's rejection taxonomy onto HTTP statuses.
func (h *Handler) ChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		h.Error(w, http.StatusNotFound, "room not found")
	case errors.Is(err, chat.ErrNotAMember):
		h.Error(w, http.StatusForbidden, "not a member of this room")
	case errors.Is(err, chat.ErrRoomInactive):
		h.Error(w, http.StatusConflict, "room is no longer active")
	case errors.Is(err, chat.ErrSubjectClosed):
		h.Error(w, http.StatusConflict, "subject no longer accepts chats")
	case errors.Is(err, chat.ErrSelfJoinForbidden):
		h.Error(w, http.StatusUnprocessableEntity, "cannot open a chat with yourself")
	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// roomIDParam parses the {id} route parameter.
func roomIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/swapmeet-dev/swapmeet/internal/api/middleware"
	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// OpenTradeRoomRequest asks for the room between the caller and the
// counterpart for a listing. Idempotent: repeated calls return the same
// room.
type OpenTradeRoomRequest struct {
	SubjectID     string `json:"subject_id"`
	CounterpartID string `json:"counterpart_id"`
}

// JoinMeetupRequest joins the caller to a meetup subject's room.
type JoinMeetupRequest struct {
	SubjectID string `json:"subject_id"`
}

// RoomResponse is the common room payload.
type RoomResponse struct {
	Room       models.Room `json:"room"`
	FirstEntry bool        `json:"first_entry,omitempty"`
}

// MarkReadRequest moves the caller's read pointer.
type MarkReadRequest struct {
	MessageID string `json:"message_id"`
}

// OpenTradeRoom returns (creating if needed) the trade room for the
// caller and counterpart on a listing.
func (h *Handler) OpenTradeRoom(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberFromContext(r.Context())

	var req OpenTradeRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid subject_id")
		return
	}
	counterpartID, err := uuid.Parse(req.CounterpartID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid counterpart_id")
		return
	}

	room, err := h.directory.GetOrCreateTradeRoom(r.Context(), subjectID, memberID, counterpartID)
	if err != nil {
		h.ChatError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, RoomResponse{Room: *room})
}

// JoinMeetupRoom joins or re-joins the caller to a meetup's room, creating
// the room on the meetup's first join.
func (h *Handler) JoinMeetupRoom(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberFromContext(r.Context())

	var req JoinMeetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid subject_id")
		return
	}

	room, outcome, err := h.directory.JoinMeetup(r.Context(), subjectID, memberID)
	if err != nil {
		h.ChatError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, RoomResponse{Room: *room, FirstEntry: outcome.FirstEntry})
}

// LeaveRoom removes the caller from the room. Idempotent: leaving a room
// already left returns 204 as well.
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberFromContext(r.Context())

	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	if err := h.directory.Leave(r.Context(), roomID, memberID); err != nil {
		h.ChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTrade records the transaction event and closes the trade room.
func (h *Handler) CompleteTrade(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberFromContext(r.Context())

	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	if err := h.directory.CompleteTrade(r.Context(), roomID, memberID); err != nil {
		h.ChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkRead moves the caller's read pointer in a room.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberFromContext(r.Context())

	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageID == "" {
		h.Error(w, http.StatusBadRequest, "message_id is required")
		return
	}

	if err := h.directory.MarkRead(r.Context(), roomID, memberID, req.MessageID); err != nil {
		h.ChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRooms returns the caller's rooms with last-message snapshots and
// unread counts.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberFromContext(r.Context())

	summaries, err := h.directory.Rooms(r.Context(), memberID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	h.JSON(w, http.StatusOK, map[string][]models.RoomSummary{"rooms": summaries})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/swapmeet-dev/swapmeet/internal/api/middleware"
	"github.com/swapmeet-dev/swapmeet/internal/models"
)

const maxContentBytes = 2000

// SubmitMessageRequest is the message-send payload. The sender identity
// comes from the trusted member header, never from the body.
type SubmitMessageRequest struct {
	Content string `json:"content"`
}

// SubmitMessageResponse acknowledges a durably accepted message.
type SubmitMessageResponse struct {
	Message models.Message `json:"message"`
}

// HistoryResponse is one page of room history, newest first.
type HistoryResponse struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
	// NextCursor is the sent_at boundary (unix millis) for the next older
	// page; present only when HasMore.
	NextCursor int64 `json:"next_cursor,omitempty"`
}

// SubmitMessage accepts a talk message into a room.
func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberFromContext(r.Context())

	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	var req SubmitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxContentBytes {
		h.Error(w, http.StatusUnprocessableEntity, "content too long")
		return
	}

	msg, err := h.gateway.Submit(r.Context(), roomID, memberID, req.Content)
	if err != nil {
		h.ChatError(w, err)
		return
	}
	h.JSON(w, http.StatusCreated, SubmitMessageResponse{Message: *msg})
}

// GetHistory returns a page of room history. The cursor query parameter
// `before` is the previous page's next_cursor (sent_at unix millis);
// omitting it asks for the most recent page.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.MemberFromContext(r.Context())

	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	var cursor *time.Time
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		millis, err := strconv.ParseInt(beforeStr, 10, 64)
		if err != nil || millis <= 0 {
			h.Error(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		t := time.UnixMilli(millis).UTC()
		cursor = &t
	}

	size := 0
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		if n, err := strconv.Atoi(sizeStr); err == nil {
			size = n
		}
	}

	messages, hasMore, err := h.history.Page(r.Context(), roomID, memberID, cursor, size)
	if err != nil {
		h.ChatError(w, err)
		return
	}

	resp := HistoryResponse{Messages: messages, HasMore: hasMore}
	if hasMore && len(messages) > 0 {
		resp.NextCursor = messages[len(messages)-1].SentAt.UnixMilli()
	}
	h.JSON(w, http.StatusOK, resp)
}

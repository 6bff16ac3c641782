package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/reciperag/session-cache/internal/api/middleware"
	"github.com/reciperag/session-cache/internal/api/response"
	"github.com/reciperag/session-cache/internal/domain"
	"github.com/reciperag/session-cache/internal/remote"
	"github.com/reciperag/session-cache/internal/session"
	"github.com/reciperag/session-cache/internal/storage"
)

// Messenger is the slice of the conversation API the chat handler needs.
type Messenger interface {
	SendMessage(ctx context.Context, id, message string) (*remote.Reply, error)
}

// ChatHandler forwards user messages to the remote service and records both
// sides of the exchange in the session store.
type ChatHandler struct {
	selector  storage.Selector
	messenger Messenger
	validate  *validator.Validate
}

// NewChatHandler creates a chat handler.
func NewChatHandler(selector storage.Selector, messenger Messenger) *ChatHandler {
	return &ChatHandler{
		selector:  selector,
		messenger: messenger,
		validate:  validator.New(),
	}
}

// Send appends the user's message, forwards it to the remote service, and on
// success appends the assistant's reply and updates the current recipe.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	state, _ := middleware.GetAuthState(r.Context())
	store := session.NewStore(h.selector, state)

	rec, err := store.AppendMessage(r.Context(), domain.Message{
		Sender:         domain.SenderUser,
		Content:        req.Message,
		DeliveryStatus: domain.StatusSent,
	})
	if writeSaveError(w, err) {
		return
	}

	userMsgID := rec.Messages[len(rec.Messages)-1].ID

	reply, err := h.messenger.SendMessage(r.Context(), rec.ID, req.Message)
	if err != nil {
		log.Error().Err(err).Str("session_id", rec.ID).Msg("message delivery failed")
		h.markDeliveryFailed(r.Context(), store, userMsgID)
		response.Error(w, http.StatusBadGateway, "message delivery failed")
		return
	}

	rec, err = store.AppendMessage(r.Context(), domain.Message{
		ID:             reply.MessageID,
		Sender:         domain.SenderAI,
		Content:        reply.Response,
		DeliveryStatus: domain.StatusDelivered,
	})
	if writeSaveError(w, err) {
		return
	}

	if reply.Recipe != nil {
		rec, err = store.SetRecipe(r.Context(), session.SnapshotFromRemote(reply.Recipe))
		if writeSaveError(w, err) {
			return
		}
	}

	response.OK(w, map[string]any{
		"reply":   reply.Response,
		"session": rec,
	})
}

// markDeliveryFailed flips the recorded message to the error status so the
// record does not claim a delivery that never happened. Best effort: the
// caller is already answering 502.
func (h *ChatHandler) markDeliveryFailed(ctx context.Context, store *session.Store, msgID string) {
	_, err := store.Update(ctx, func(rec *domain.SessionRecord) *domain.SessionRecord {
		for i := range rec.Messages {
			if rec.Messages[i].ID == msgID {
				rec.Messages[i].DeliveryStatus = domain.StatusError
			}
		}
		return rec
	})
	if err != nil {
		log.Warn().Err(err).Str("message_id", msgID).Msg("failed to record delivery failure")
	}
}

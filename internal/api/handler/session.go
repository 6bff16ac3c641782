package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/reciperag/session-cache/internal/api/middleware"
	"github.com/reciperag/session-cache/internal/api/response"
	"github.com/reciperag/session-cache/internal/domain"
	"github.com/reciperag/session-cache/internal/session"
	"github.com/reciperag/session-cache/internal/storage"
)

// saveFailedMsg is the only persistence failure the UI ever sees; it is
// surfaced once and not retried beyond the store's built-in retry.
const saveFailedMsg = "your last action may not have been saved"

// SessionHandler exposes the session store and the resume state machine over
// HTTP. A store is bound per request to the auth state the middleware
// detected.
type SessionHandler struct {
	selector storage.Selector
	fetcher  session.Fetcher
	validate *validator.Validate
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(selector storage.Selector, fetcher session.Fetcher) *SessionHandler {
	return &SessionHandler{
		selector: selector,
		fetcher:  fetcher,
		validate: validator.New(),
	}
}

func (h *SessionHandler) store(r *http.Request) *session.Store {
	state, _ := middleware.GetAuthState(r.Context())
	return session.NewStore(h.selector, state)
}

func writeSaveError(w http.ResponseWriter, err error) bool {
	var perr *session.PersistenceError
	if errors.As(err, &perr) {
		response.InternalError(w, saveFailedMsg)
		return true
	}
	if err != nil {
		response.InternalError(w, "internal error")
		return true
	}
	return false
}

// GetCurrent returns the active session record, if any.
func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	rec := h.store(r).GetCurrent(r.Context())
	if rec == nil {
		response.NotFound(w, "no active session")
		return
	}
	response.OK(w, rec)
}

// Create starts a fresh session, optionally seeded with detected
// ingredients, and persists it.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Optional body
	}

	store := h.store(r)
	rec := store.Create(req.Ingredients)
	if writeSaveError(w, store.Save(r.Context(), rec)) {
		return
	}
	response.Created(w, rec)
}

// Clear removes the active session record.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store(r).Clear(r.Context()); err != nil {
		response.InternalError(w, "failed to clear session")
		return
	}
	response.OK(w, map[string]string{"message": "session cleared"})
}

// SetIngredients replaces the session's detected-ingredient list.
func (h *SessionHandler) SetIngredients(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ingredients []string `json:"ingredients" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.store(r).SetIngredients(r.Context(), req.Ingredients)
	if writeSaveError(w, err) {
		return
	}
	response.OK(w, rec)
}

// SetRecipe replaces (or, with a null body, clears) the current recipe.
func (h *SessionHandler) SetRecipe(w http.ResponseWriter, r *http.Request) {
	var recipe *domain.RecipeSnapshot
	if err := json.NewDecoder(r.Body).Decode(&recipe); err != nil {
		response.BadRequest(w, "invalid recipe payload")
		return
	}

	rec, err := h.store(r).SetRecipe(r.Context(), recipe)
	if writeSaveError(w, err) {
		return
	}
	response.OK(w, rec)
}

// AppendMessage appends a message to the conversation.
func (h *SessionHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender  string `json:"sender" validate:"required,oneof=user ai"`
		Content string `json:"content" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.store(r).AppendMessage(r.Context(), domain.Message{
		Sender:  domain.Sender(req.Sender),
		Content: req.Content,
	})
	if writeSaveError(w, err) {
		return
	}
	response.OK(w, rec)
}

// AppendRefinement records a pre-chat refinement request.
func (h *SessionHandler) AppendRefinement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string                 `json:"text" validate:"required"`
		Recipe *domain.RecipeSnapshot `json:"recipe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.store(r).AppendRefinement(r.Context(), domain.Refinement{
		Text:   req.Text,
		Recipe: req.Recipe,
	})
	if writeSaveError(w, err) {
		return
	}
	response.OK(w, rec)
}

// Resume hydrates the conversation identified by the URL parameter, running
// the reconciliation state machine.
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	openID := chi.URLParam(r, "sessionID")
	if openID == "" {
		response.BadRequest(w, "missing session ID")
		return
	}

	reconciler := session.NewReconciler(h.store(r), h.fetcher)
	rec, err := reconciler.Resume(r.Context(), openID)
	if writeSaveError(w, err) {
		return
	}
	response.OK(w, rec)
}

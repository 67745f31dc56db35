package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/api/request"
	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
)

// APIKey handles API key management endpoints. Every operation is scoped to
// the caller's user ID and requires a first-party session.
type APIKey struct {
	svc *core.APIKeyService
}

// NewAPIKey creates a new APIKey handler.
func NewAPIKey(svc *core.APIKeyService) *APIKey {
	return &APIKey{svc: svc}
}

// Create godoc
//
//	@Summary		Create an API key
//	@Description	Creates an API key owned by the caller. The raw key is returned once in the response and cannot be retrieved again. Only a signed-in user session may create keys; access tokens and API keys get 403.
//	@Tags			API Keys
//	@Security		SessionCookie
//	@Param			body body request.CreateAPIKey true "API key details"
//	@Success		201 {object} map[string]any
//	@Failure		400 {object} map[string]string
//	@Failure		403 {object} map[string]string
//	@Router			/api-keys [post]
func (h *APIKey) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := sessionPrincipal(w, r)
	if !ok {
		return
	}

	var req request.CreateAPIKey
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, rawKey, err := h.svc.Create(r.Context(), p.UserID, req.Name, req.Scopes, req.ExpiresAt)
	if errors.Is(err, core.ErrInvalidInput) {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	// The raw key is shown only once.
	resp := map[string]any{
		"id":         key.ID,
		"name":       key.Name,
		"key":        rawKey,
		"prefix":     key.Prefix,
		"scopes":     key.Scopes,
		"expires_at": key.ExpiresAt,
		"created_at": key.CreatedAt,
	}
	response.WriteJSON(w, http.StatusCreated, resp)
}

// List godoc
//
//	@Summary		List API keys
//	@Description	Lists the caller's API keys, including revoked and expired ones. Secrets are never returned.
//	@Tags			API Keys
//	@Security		SessionCookie
//	@Success		200 {object} map[string]any
//	@Router			/api-keys [get]
func (h *APIKey) List(w http.ResponseWriter, r *http.Request) {
	p, ok := sessionPrincipal(w, r)
	if !ok {
		return
	}

	keys, err := h.svc.List(r.Context(), p.UserID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if keys == nil {
		keys = []model.APIKey{}
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": keys})
}

// Revoke godoc
//
//	@Summary		Revoke an API key
//	@Description	Revokes one of the caller's API keys. Keys of other users are reported as not found.
//	@Tags			API Keys
//	@Security		SessionCookie
//	@Param			id path string true "API key ID"
//	@Success		204
//	@Failure		404 {object} map[string]string
//	@Router			/api-keys/{id} [delete]
func (h *APIKey) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := sessionPrincipal(w, r)
	if !ok {
		return
	}

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.svc.Revoke(r.Context(), p.UserID, id)
	if errors.Is(err, store.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, "api key not found")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// internalError logs err and writes a generic 500.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	response.WriteError(w, http.StatusInternalServerError, "internal error")
}

package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/authcore/internal/api/request"
	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/model"
	"github.com/edvin/authcore/internal/store"
)

// Consent lets users review and withdraw the access they granted to clients.
// Only first-party sessions may use it.
type Consent struct {
	svc *core.ConsentService
}

func NewConsent(svc *core.ConsentService) *Consent {
	return &Consent{svc: svc}
}

// List returns the caller's live consents.
func (h *Consent) List(w http.ResponseWriter, r *http.Request) {
	p, ok := sessionPrincipal(w, r)
	if !ok {
		return
	}

	consents, err := h.svc.List(r.Context(), p.UserID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if consents == nil {
		consents = []model.Consent{}
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": consents})
}

// Revoke withdraws consent for a client and revokes every token the client
// holds for the caller.
func (h *Consent) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := sessionPrincipal(w, r)
	if !ok {
		return
	}

	clientID, err := request.RequireID(chi.URLParam(r, "clientID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.svc.Revoke(r.Context(), p.UserID, clientID)
	if errors.Is(err, store.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, "consent not found")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

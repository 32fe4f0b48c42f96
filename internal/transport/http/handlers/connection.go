package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/JosephRemingston/insightAI/internal/service"
	"github.com/JosephRemingston/insightAI/internal/transport/http/middleware"
	apierrors "github.com/JosephRemingston/insightAI/internal/transport/http/errors"
)

// Connection handlers require RequireAuth upstream.

func (h *Handlers) SaveConnection(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	var in saveConnectionRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	cred, err := h.vault.SaveConnection(r.Context(), user.ID, in.MongoURI, in.Name)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, connectionResponse{Connection: connectionView{
		ID:        cred.ID.String(),
		Name:      cred.Name,
		CreatedAt: cred.CreatedAt,
	}})
}

func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	var in connectRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	id, err := uuid.Parse(in.ConnectionID)
	if err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("%w: connectionId", service.ErrInvalidArgument))
		return
	}

	info, err := h.vault.Connect(r.Context(), user.ID, id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusFromInfo(info))
}

func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	if err := h.vault.Disconnect(r.Context(), user.ID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, empty{})
}

func (h *Handlers) ConnectionStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	writeJSON(w, http.StatusOK, statusFromInfo(h.vault.ConnectionStatus(r.Context(), user.ID)))
}

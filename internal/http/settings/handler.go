package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/loyer/internal/auth"
	"github.com/MrJamesThe3rd/loyer/internal/http/response"
	"github.com/MrJamesThe3rd/loyer/internal/settings"
)

type Handler struct {
	svc *settings.Service
}

func NewHandler(svc *settings.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/quick-actions", h.get)
	r.With(auth.RequireRole(auth.RoleOwner)).Put("/quick-actions", h.save)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Get(r.Context())
	if err != nil {
		response.Internal(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, cfg)
}

// The body is a full configuration; its version is the one the client edited.
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var req settings.Config
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg, err := h.svc.Save(r.Context(), req, req.Version)
	if err != nil {
		switch {
		case errors.Is(err, settings.ErrInvalidConfig):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, settings.ErrVersionConflict):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			response.Internal(w, r, err)
		}

		return
	}

	response.JSON(w, http.StatusOK, cfg)
}

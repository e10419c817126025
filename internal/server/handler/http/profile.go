package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/GlycoKeeper/internal/middleware"
	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// ProfileService defines the profile operations required by ProfileHandler.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, p models.Profile) (*models.Profile, error)
	Contacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)
	AddContact(ctx context.Context, userID string, c models.EmergencyContact) (*models.EmergencyContact, error)
	DeleteContact(ctx context.Context, userID, id string) error
	Doctor(ctx context.Context, userID string) (*models.Doctor, error)
	UpdateDoctor(ctx context.Context, userID string, d models.Doctor) (*models.Doctor, error)
}

// ProfileHandler serves /users/me and its sub-resources.
type ProfileHandler struct {
	ProfileService ProfileService
}

// GetProfile handles GET /users/me.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.ProfileService.GetProfile(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /users/me. The user ID always comes from the token.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.Profile
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.ProfileService.UpdateProfile(r.Context(), middleware.GetUserIDFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListContacts handles GET /users/me/contacts.
func (h *ProfileHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.ProfileService.Contacts(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// AddContact handles POST /users/me/contacts.
func (h *ProfileHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	var req models.EmergencyContact
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.ProfileService.AddContact(r.Context(), middleware.GetUserIDFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// DeleteContact handles DELETE /users/me/contacts/{id}.
func (h *ProfileHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	err := h.ProfileService.DeleteContact(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDoctor handles GET /users/me/doctor.
func (h *ProfileHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	d, err := h.ProfileService.Doctor(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateDoctor handles PUT /users/me/doctor.
func (h *ProfileHandler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	var req models.Doctor
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := h.ProfileService.UpdateDoctor(r.Context(), middleware.GetUserIDFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

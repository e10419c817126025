package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/atinyakov/GlycoKeeper/internal/client/api"
	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// UsersService manages the profile, emergency contacts and doctor of the current user.
type UsersService struct {
	api Doer
}

// NewUsersService returns a UsersService using api.
func NewUsersService(api Doer) *UsersService {
	return &UsersService{api: api}
}

// Profile fetches the profile of the current user.
func (s *UsersService) Profile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := s.api.Do(ctx, http.MethodGet, "/users/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile validates p and replaces the stored profile with it.
func (s *UsersService) UpdateProfile(ctx context.Context, p models.Profile) (*models.Profile, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	var updated models.Profile
	if err := s.api.Do(ctx, http.MethodPut, "/users/me", p, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Contacts lists the emergency contacts.
func (s *UsersService) Contacts(ctx context.Context) ([]models.EmergencyContact, error) {
	var contacts []models.EmergencyContact
	if err := s.api.Do(ctx, http.MethodGet, "/users/me/contacts", nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// AddContact validates and stores c. The backend assigns the ID.
func (s *UsersService) AddContact(ctx context.Context, c models.EmergencyContact) (*models.EmergencyContact, error) {
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("invalid contact: %w", err)
	}
	var created models.EmergencyContact
	if err := s.api.Do(ctx, http.MethodPost, "/users/me/contacts", c, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteContact removes the contact with the given ID.
func (s *UsersService) DeleteContact(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("contact id is required")
	}
	return s.api.Do(ctx, http.MethodDelete, "/users/me/contacts/"+url.PathEscape(id), nil, nil)
}

// Doctor returns the doctor on file, or nil if none was set.
func (s *UsersService) Doctor(ctx context.Context) (*models.Doctor, error) {
	var d models.Doctor
	if err := s.api.Do(ctx, http.MethodGet, "/users/me/doctor", nil, &d); err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// UpdateDoctor validates d and replaces the doctor on file.
func (s *UsersService) UpdateDoctor(ctx context.Context, d models.Doctor) (*models.Doctor, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("invalid doctor: %w", err)
	}
	var updated models.Doctor
	if err := s.api.Do(ctx, http.MethodPut, "/users/me/doctor", d, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

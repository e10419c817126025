package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// MaxContacts caps the number of emergency contacts per user.
const MaxContacts = 5

// ErrInvalidInput is returned for values that pass field validation but not the service rules.
var ErrInvalidInput = errors.New("invalid input")

// ProfileRepository defines the persistence operations on profile data.
type ProfileRepository interface {
	ProfileReader
	UpsertProfile(ctx context.Context, p models.Profile) error
	ListContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)
	AddContact(ctx context.Context, userID string, c models.EmergencyContact) error
	// DeleteContact returns models.ErrNotFound if the contact does not belong to the user.
	DeleteContact(ctx context.Context, userID, id string) error
	// GetDoctor returns models.ErrNotFound if no doctor was set.
	GetDoctor(ctx context.Context, userID string) (*models.Doctor, error)
	UpsertDoctor(ctx context.Context, userID string, d models.Doctor) error
}

// ProfileService manages profile, emergency contacts and doctor.
type ProfileService struct {
	repo ProfileRepository
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo}
}

// GetProfile returns the profile, falling back to defaults for users that never saved one.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.Profile{UserID: userID, TargetMin: DefaultTargetMin, TargetMax: DefaultTargetMax}, nil
	}
	return p, err
}

// UpdateProfile replaces the profile of userID. Unset targets get the defaults.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, p models.Profile) (*models.Profile, error) {
	p.UserID = userID
	if p.TargetMin == 0 {
		p.TargetMin = DefaultTargetMin
	}
	if p.TargetMax == 0 {
		p.TargetMax = DefaultTargetMax
	}
	if p.TargetMax <= p.TargetMin {
		return nil, fmt.Errorf("%w: target_max must be above target_min", ErrInvalidInput)
	}
	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProfileService) Contacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	contacts, err := s.repo.ListContacts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []models.EmergencyContact{}
	}
	return contacts, nil
}

// AddContact stores c with a new ID. Returns models.ErrConflict past MaxContacts.
func (s *ProfileService) AddContact(ctx context.Context, userID string, c models.EmergencyContact) (*models.EmergencyContact, error) {
	existing, err := s.repo.ListContacts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= MaxContacts {
		return nil, fmt.Errorf("%w: at most %d emergency contacts", models.ErrConflict, MaxContacts)
	}
	c.ID = uuid.NewString()
	if err := s.repo.AddContact(ctx, userID, c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ProfileService) DeleteContact(ctx context.Context, userID, id string) error {
	return s.repo.DeleteContact(ctx, userID, id)
}

func (s *ProfileService) Doctor(ctx context.Context, userID string) (*models.Doctor, error) {
	return s.repo.GetDoctor(ctx, userID)
}

func (s *ProfileService) UpdateDoctor(ctx context.Context, userID string, d models.Doctor) (*models.Doctor, error) {
	if err := s.repo.UpsertDoctor(ctx, userID, d); err != nil {
		return nil, err
	}
	return &d, nil
}

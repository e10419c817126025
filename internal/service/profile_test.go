package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

type mockProfileRepo struct {
	profile  *models.Profile
	contacts []models.EmergencyContact
	doctor   *models.Doctor
	err      error
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.profile == nil {
		return nil, models.ErrNotFound
	}
	return m.profile, nil
}

func (m *mockProfileRepo) UpsertProfile(ctx context.Context, p models.Profile) error {
	if m.err != nil {
		return m.err
	}
	m.profile = &p
	return nil
}

func (m *mockProfileRepo) ListContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	return m.contacts, m.err
}

func (m *mockProfileRepo) AddContact(ctx context.Context, userID string, c models.EmergencyContact) error {
	m.contacts = append(m.contacts, c)
	return nil
}

func (m *mockProfileRepo) DeleteContact(ctx context.Context, userID, id string) error {
	for i, c := range m.contacts {
		if c.ID == id {
			m.contacts = append(m.contacts[:i], m.contacts[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *mockProfileRepo) GetDoctor(ctx context.Context, userID string) (*models.Doctor, error) {
	if m.doctor == nil {
		return nil, models.ErrNotFound
	}
	return m.doctor, nil
}

func (m *mockProfileRepo) UpsertDoctor(ctx context.Context, userID string, d models.Doctor) error {
	m.doctor = &d
	return nil
}

func TestProfile_Defaults(t *testing.T) {
	svc := NewProfileService(&mockProfileRepo{})

	p, err := svc.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, DefaultTargetMin, p.TargetMin)
	assert.Equal(t, DefaultTargetMax, p.TargetMax)
}

func TestProfile_GetError(t *testing.T) {
	wantErr := errors.New("db error")
	svc := NewProfileService(&mockProfileRepo{err: wantErr})

	_, err := svc.GetProfile(context.Background(), "u1")
	assert.ErrorIs(t, err, wantErr)
}

func TestProfile_Update(t *testing.T) {
	repo := &mockProfileRepo{}
	svc := NewProfileService(repo)

	p, err := svc.UpdateProfile(context.Background(), "u1", models.Profile{UserID: "spoofed", FirstName: "Ann", TargetMax: 160})
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, DefaultTargetMin, p.TargetMin)
	assert.Equal(t, 160, p.TargetMax)
	assert.Equal(t, "u1", repo.profile.UserID)

	_, err = svc.UpdateProfile(context.Background(), "u1", models.Profile{TargetMin: 150, TargetMax: 120})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateProfile(context.Background(), "u1", models.Profile{TargetMin: 200})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProfile_Contacts(t *testing.T) {
	repo := &mockProfileRepo{}
	svc := NewProfileService(repo)
	ctx := context.Background()

	empty, err := svc.Contacts(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	c, err := svc.AddContact(ctx, "u1", models.EmergencyContact{Name: "Mum", Phone: "+33 1"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	for i := 1; i < MaxContacts; i++ {
		_, err := svc.AddContact(ctx, "u1", models.EmergencyContact{Name: "x", Phone: "1"})
		require.NoError(t, err)
	}
	_, err = svc.AddContact(ctx, "u1", models.EmergencyContact{Name: "extra", Phone: "1"})
	assert.ErrorIs(t, err, models.ErrConflict)

	require.NoError(t, svc.DeleteContact(ctx, "u1", c.ID))
	assert.ErrorIs(t, svc.DeleteContact(ctx, "u1", c.ID), models.ErrNotFound)
}

func TestProfile_Doctor(t *testing.T) {
	svc := NewProfileService(&mockProfileRepo{})
	ctx := context.Background()

	_, err := svc.Doctor(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.UpdateDoctor(ctx, "u1", models.Doctor{Name: "Dr House", Latitude: 48.85, Longitude: 2.35})
	require.NoError(t, err)

	d, err := svc.Doctor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Dr House", d.Name)
}

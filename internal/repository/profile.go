package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// PostgresProfileRepository stores profiles, emergency contacts and doctors.
type PostgresProfileRepository struct {
	DB *sql.DB
}

// NewPostgresProfileRepository creates a PostgresProfileRepository.
func NewPostgresProfileRepository(db *sql.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{DB: db}
}

func (r *PostgresProfileRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p := models.Profile{UserID: userID}
	err := r.DB.QueryRowContext(ctx, `
		SELECT first_name, last_name, phone, diabetes_type, target_min, target_max
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.FirstName, &p.LastName, &p.Phone, &p.DiabetesType, &p.TargetMin, &p.TargetMax)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *PostgresProfileRepository) UpsertProfile(ctx context.Context, p models.Profile) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO profiles (user_id, first_name, last_name, phone, diabetes_type, target_min, target_max)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			diabetes_type = EXCLUDED.diabetes_type,
			target_min = EXCLUDED.target_min,
			target_max = EXCLUDED.target_max
	`, p.UserID, p.FirstName, p.LastName, p.Phone, p.DiabetesType, p.TargetMin, p.TargetMax)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// ListContacts returns the emergency contacts of userID in creation order.
func (r *PostgresProfileRepository) ListContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, phone, relationship FROM emergency_contacts
		WHERE user_id = $1 ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListContacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.EmergencyContact
	for rows.Next() {
		var c models.EmergencyContact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Relationship); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *PostgresProfileRepository) AddContact(ctx context.Context, userID string, c models.EmergencyContact) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO emergency_contacts (id, user_id, name, phone, relationship)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, userID, c.Name, c.Phone, c.Relationship)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// DeleteContact removes contact id of userID. Contacts of other users are never touched.
func (r *PostgresProfileRepository) DeleteContact(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM emergency_contacts WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PostgresProfileRepository) GetDoctor(ctx context.Context, userID string) (*models.Doctor, error) {
	var d models.Doctor
	err := r.DB.QueryRowContext(ctx, `
		SELECT name, specialty, phone, email, address, latitude, longitude
		FROM doctors WHERE user_id = $1
	`, userID).Scan(&d.Name, &d.Specialty, &d.Phone, &d.Email, &d.Address, &d.Latitude, &d.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return &d, nil
}

func (r *PostgresProfileRepository) UpsertDoctor(ctx context.Context, userID string, d models.Doctor) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO doctors (user_id, name, specialty, phone, email, address, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			specialty = EXCLUDED.specialty,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			address = EXCLUDED.address,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude
	`, userID, d.Name, d.Specialty, d.Phone, d.Email, d.Address, d.Latitude, d.Longitude)
	if err != nil {
		return fmt.Errorf("upsert doctor: %w", err)
	}
	return nil
}

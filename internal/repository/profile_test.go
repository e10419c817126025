package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

func setupProfileMock(t *testing.T) (*PostgresProfileRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	return NewPostgresProfileRepository(db), mock, func() { db.Close() }
}

func TestGetProfile(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM profiles WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "phone", "diabetes_type", "target_min", "target_max"}).
			AddRow("Ann", "Lee", "+1 555", "type1", 80, 160))

	p, err := repo.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.Profile{UserID: "u1", FirstName: "Ann", LastName: "Lee", Phone: "+1 555", DiabetesType: "type1", TargetMin: 80, TargetMax: 160}
	if *p != want {
		t.Errorf("GetProfile = %+v; want %+v", *p, want)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM profiles`)).
		WillReturnRows(sqlmock.NewRows([]string{"first_name"}))

	_, err := repo.GetProfile(context.Background(), "u1")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetProfile error = %v; want ErrNotFound", err)
	}
}

func TestUpsertProfile(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	p := models.Profile{UserID: "u1", FirstName: "Ann", TargetMin: 70, TargetMax: 180}
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (user_id) DO UPDATE`)).
		WithArgs("u1", "Ann", "", "", "", 70, 180).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContacts(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO emergency_contacts`)).
		WithArgs("c1", "u1", "Mum", "+33 1", "mother").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM emergency_contacts`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "relationship"}).
			AddRow("c1", "Mum", "+33 1", "mother"))

	ctx := context.Background()
	if err := repo.AddContact(ctx, "u1", models.EmergencyContact{ID: "c1", Name: "Mum", Phone: "+33 1", Relationship: "mother"}); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	got, err := repo.ListContacts(ctx, "u1")
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Mum" {
		t.Errorf("ListContacts = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDeleteContact(t *testing.T) {
	cases := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"not owned", 0, models.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, cleanup := setupProfileMock(t)
			defer cleanup()

			mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM emergency_contacts WHERE user_id = $1 AND id = $2`)).
				WithArgs("u1", "c1").
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			err := repo.DeleteContact(context.Background(), "u1", "c1")
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("DeleteContact error = %v; want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDoctor(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	d := models.Doctor{Name: "Dr Who", Specialty: "endocrinology", Latitude: 51.5, Longitude: -0.12}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO doctors`)).
		WithArgs("u1", d.Name, d.Specialty, "", "", "", d.Latitude, d.Longitude).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM doctors WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "specialty", "phone", "email", "address", "latitude", "longitude"}).
			AddRow(d.Name, d.Specialty, "", "", "", d.Latitude, d.Longitude))

	ctx := context.Background()
	if err := repo.UpsertDoctor(ctx, "u1", d); err != nil {
		t.Fatalf("UpsertDoctor: %v", err)
	}
	got, err := repo.GetDoctor(ctx, "u1")
	if err != nil {
		t.Fatalf("GetDoctor: %v", err)
	}
	if *got != d {
		t.Errorf("GetDoctor = %+v; want %+v", *got, d)
	}
}

func TestGetDoctor_NotFound(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM doctors`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if _, err := repo.GetDoctor(context.Background(), "u1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetDoctor error = %v; want ErrNotFound", err)
	}
}

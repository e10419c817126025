package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

func setupSnapshotMock(t *testing.T) (*PostgresSnapshotRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	return NewPostgresSnapshotRepository(db), mock, func() { db.Close() }
}

func TestPutAndGetSnapshot(t *testing.T) {
	repo, mock, cleanup := setupSnapshotMock(t)
	defer cleanup()

	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	snap := models.ModuleSnapshot{Module: models.ModuleMedication, Data: []byte(`{"next":"metformin"}`), UpdatedAt: at}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO module_snapshots`)).
		WithArgs("u1", "medication", `{"next":"metformin"}`, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM module_snapshots WHERE user_id = $1 AND module = $2`)).
		WithArgs("u1", "medication").
		WillReturnRows(sqlmock.NewRows([]string{"data", "updated_at"}).AddRow([]byte(`{"next":"metformin"}`), at))

	ctx := context.Background()
	if err := repo.PutSnapshot(ctx, "u1", snap); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}
	got, err := repo.GetSnapshot(ctx, "u1", models.ModuleMedication)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if string(got.Data) != `{"next":"metformin"}` || !got.UpdatedAt.Equal(at) || got.Module != models.ModuleMedication {
		t.Errorf("GetSnapshot = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	repo, mock, cleanup := setupSnapshotMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM module_snapshots`)).
		WillReturnRows(sqlmock.NewRows([]string{"data", "updated_at"}))

	if _, err := repo.GetSnapshot(context.Background(), "u1", models.ModuleAlerts); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetSnapshot error = %v; want ErrNotFound", err)
	}
}

func TestDeleteSnapshots(t *testing.T) {
	repo, mock, cleanup := setupSnapshotMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM module_snapshots WHERE user_id = $1 AND module = ANY($2)`)).
		WithArgs("u1", pq.Array([]string{"nutrition", "activity"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.DeleteSnapshots(context.Background(), "u1", []models.Module{models.ModuleNutrition, models.ModuleActivity})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

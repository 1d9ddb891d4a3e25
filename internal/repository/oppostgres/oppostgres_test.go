package oppostgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"
)

func newRepoWithMock(t *testing.T) (PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return PostgresRepo{DB: &dbpg.DB{Master: db}}, mock
}

var columns = []string{
	"id", "operation", "model", "prompt", "source_identifier",
	"result_identifier", "result_uri", "storage", "created_at",
}

// CREATE - SUCCESS
func TestPostgresRepo_Create_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	rec := &model.OperationRecord{
		ID:               uuid.New(),
		Operation:        model.OpGenerate,
		Model:            "openai",
		Prompt:           "a fox",
		ResultIdentifier: "generated_x.png",
		ResultURI:        "/results/generated_x.png",
		Storage:          "local",
		CreatedAt:        &now,
	}

	mock.ExpectExec(`INSERT INTO operations .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(rec.ID, rec.Operation, rec.Model, rec.Prompt, rec.SourceIdentifier,
			rec.ResultIdentifier, rec.ResultURI, rec.Storage, rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

// CREATE - DB ERROR
func TestPostgresRepo_Create_Error(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO operations`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &model.OperationRecord{ID: uuid.New()})
	require.Error(t, err)
}

// GETLIST - SUCCESS
func TestPostgresRepo_GetList_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(columns).
		AddRow(uuid.New().String(), string(model.OpUpscale), "", "", "a.png", "generated_b.png", "/results/generated_b.png", "local", time.Now()).
		AddRow(uuid.New().String(), string(model.OpDescribe), "gemini", "", "generated_b.png", "", "", "local", time.Now())

	mock.ExpectQuery(`SELECT id, operation, .* ORDER BY created_at DESC`).
		WithArgs(10, 10).
		WillReturnRows(rows)

	res, err := repo.GetList(context.Background(), &model.ListRequest{Page: 2, Limit: 10, Sort: "created_at", Order: "DESC"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, model.OpUpscale, res[0].Operation)
	require.Equal(t, "gemini", res[1].Model)
	require.NoError(t, mock.ExpectationsWereMet())
}

// GETLIST - SCAN ERROR
func TestPostgresRepo_GetList_ScanError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("not-a-uuid")
	mock.ExpectQuery(`SELECT id`).WillReturnRows(rows)

	_, err := repo.GetList(context.Background(), &model.ListRequest{Page: 1, Limit: 30, Sort: "created_at", Order: "ASC"})
	require.Error(t, err)
}

// GETLIST - QUERY ERROR
func TestPostgresRepo_GetList_QueryError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id`).WillReturnError(errors.New("boom"))

	_, err := repo.GetList(context.Background(), &model.ListRequest{Page: 1, Limit: 30, Sort: "operation", Order: "ASC"})
	require.Error(t, err)
}

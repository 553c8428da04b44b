package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"notevault/internal/domain"
	"notevault/internal/repository"
)

func newTestNoteService(t *testing.T) (*NoteService, *VersionService, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	db := sqlx.NewDb(mockDB, "postgres")

	noteRepo := repository.NewNoteRepository(db)
	versionService := NewVersionService(noteRepo, repository.NewVersionRepository(db), testPolicy())
	noteService := NewNoteService(noteRepo, versionService)

	return noteService, versionService, mock, func() { db.Close() }
}

func TestCreateNote(t *testing.T) {
	svc, _, mock, closeDB := newTestNoteService(t)
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notes")).
		WithArgs(sqlmock.AnyArg(), "tenant-1", "my note", "hello", nil, "actor-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	note, err := svc.CreateNote(context.Background(), "tenant-1", "actor-1", domain.NoteInput{
		Title:   "my note",
		Content: "hello",
	})
	require.NoError(t, err)
	require.Equal(t, "my note", note.Title)
	require.Equal(t, "tenant-1", note.TenantID)
	require.Equal(t, "actor-1", note.CreatedBy)
	require.NotEqual(t, uuid.Nil, note.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNote_MissingIdentity(t *testing.T) {
	svc, _, _, closeDB := newTestNoteService(t)
	defer closeDB()

	_, err := svc.CreateNote(context.Background(), "", "actor-1", domain.NoteInput{Title: "t"})
	require.Error(t, err)

	_, err = svc.CreateNote(context.Background(), "tenant-1", "", domain.NoteInput{Title: "t"})
	require.Error(t, err)
}

// Автосейв внутри окна: снимок пропускается, правка проходит без вставки версии
func TestUpdateNote_AutosaveInsideWindowSkipsSnapshot(t *testing.T) {
	svc, versionService, mock, closeDB := newTestNoteService(t)
	defer closeDB()

	noteID := uuid.New()
	tenantID := "tenant-1"
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	versionService.now = func() time.Time { return now }

	// Проверка окна: последний автоснимок минуту назад
	expectNoteLookup(mock, noteID, tenantID, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM note_versions")).
		WithArgs(noteID, domain.ReasonAutosave).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now.Add(-time.Minute)))

	expectNoteLookup(mock, noteID, tenantID, now)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE notes")).
		WithArgs("new title", "new content", nil, "actor-1", noteID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	note, err := svc.UpdateNote(context.Background(), noteID, tenantID, "actor-1", domain.NoteInput{
		Title:   "new title",
		Content: "new content",
	}, true, nil)
	require.NoError(t, err)
	require.Equal(t, "new title", note.Title)
	require.Equal(t, "actor-1", note.UpdatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Явное сохранение всегда снимает manual-версию до перезаписи
func TestUpdateNote_ManualSaveSnapshotsFirst(t *testing.T) {
	svc, _, mock, closeDB := newTestNoteService(t)
	defer closeDB()

	noteID := uuid.New()
	tenantID := "tenant-1"
	now := time.Now()
	summary := "fixed typos"

	// Снимок состояния до правки
	expectNoteLookup(mock, noteID, tenantID, now)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO note_versions")).
		WithArgs(
			sqlmock.AnyArg(), noteID, tenantID,
			"title", "content", []byte(`{"blocks":[]}`),
			domain.ReasonManual, &summary, "actor-1",
		).
		WillReturnRows(sqlmock.NewRows([]string{"version_number", "created_at"}).AddRow(2, now))
	mock.ExpectCommit()

	// Перезапись заметки
	expectNoteLookup(mock, noteID, tenantID, now)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE notes")).
		WithArgs("new title", "new content", nil, "actor-1", noteID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	note, err := svc.UpdateNote(context.Background(), noteID, tenantID, "actor-1", domain.NoteInput{
		Title:   "new title",
		Content: "new content",
	}, false, &summary)
	require.NoError(t, err)
	require.Equal(t, "new title", note.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Неудавшийся снимок отменяет правку целиком
func TestUpdateNote_SnapshotFailureAbortsEdit(t *testing.T) {
	svc, _, mock, closeDB := newTestNoteService(t)
	defer closeDB()

	noteID := uuid.New()
	tenantID := "tenant-1"

	expectNoteLookup(mock, noteID, tenantID, time.Now())
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO note_versions")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := svc.UpdateNote(context.Background(), noteID, tenantID, "actor-1", domain.NoteInput{
		Title: "new title",
	}, false, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNote_NotFound(t *testing.T) {
	svc, _, mock, closeDB := newTestNoteService(t)
	defer closeDB()

	noteID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM notes")).
		WithArgs(noteID, "tenant-1").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.GetNote(context.Background(), noteID, "tenant-1")
	require.ErrorIs(t, err, ErrNoteNotFound)
}

func TestListNotes(t *testing.T) {
	svc, _, mock, closeDB := newTestNoteService(t)
	defer closeDB()

	tenantID := "tenant-1"
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notes")).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows(noteColumns).
		AddRow(uuid.NewString(), tenantID, "first", "a", nil, "actor-1", "actor-1", now, now, nil).
		AddRow(uuid.NewString(), tenantID, "second", "b", nil, "actor-1", "actor-1", now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM notes")).
		WithArgs(tenantID, 50, 0).
		WillReturnRows(rows)

	notes, total, err := svc.ListNotes(context.Background(), tenantID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, notes, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNote(t *testing.T) {
	svc, _, mock, closeDB := newTestNoteService(t)
	defer closeDB()

	noteID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notes")).
		WithArgs("actor-1", noteID, "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.DeleteNote(context.Background(), noteID, "tenant-1", "actor-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNote_AlreadyGone(t *testing.T) {
	svc, _, mock, closeDB := newTestNoteService(t)
	defer closeDB()

	noteID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notes")).
		WithArgs("actor-1", noteID, "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.DeleteNote(context.Background(), noteID, "tenant-1", "actor-1")
	require.ErrorIs(t, err, ErrNoteNotFound)
}

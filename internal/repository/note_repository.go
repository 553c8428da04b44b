package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"notevault/internal/domain"
)

type NoteRepository struct {
	db *sqlx.DB
}

func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, note *domain.Note) error {
	query := `
        INSERT INTO notes (id, tenant_id, title, content, content_state, created_by, updated_by)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		note.ID,
		note.TenantID,
		note.Title,
		note.Content,
		note.ContentState,
		note.CreatedBy,
	).Scan(&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// GetByID возвращает живую заметку, ограниченную арендатором
func (r *NoteRepository) GetByID(ctx context.Context, id uuid.UUID, tenantID string) (*domain.Note, error) {
	var note domain.Note
	query := `
        SELECT * FROM notes
        WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, &note, query, id, tenantID)
	if err != nil {
		return nil, err
	}

	return &note, nil
}

// GetForUpdate читает заметку внутри транзакции с блокировкой строки.
// Блокировка сериализует восстановления по одной заметке.
func (r *NoteRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, tenantID string) (*domain.Note, error) {
	var note domain.Note
	query := `
        SELECT * FROM notes
        WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
        FOR UPDATE`

	err := tx.GetContext(ctx, &note, query, id, tenantID)
	if err != nil {
		return nil, err
	}

	return &note, nil
}

func (r *NoteRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]domain.Note, error) {
	var notes []domain.Note
	query := `
        SELECT * FROM notes
        WHERE tenant_id = $1 AND deleted_at IS NULL
        ORDER BY updated_at DESC
        LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &notes, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	return notes, nil
}

func (r *NoteRepository) Count(ctx context.Context, tenantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notes WHERE tenant_id = $1 AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, &count, query, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}

	return count, nil
}

// Update перезаписывает изменяемые поля заметки
func (r *NoteRepository) Update(ctx context.Context, note *domain.Note) error {
	query := `
        UPDATE notes
        SET title = $1,
            content = $2,
            content_state = $3,
            updated_by = $4,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $5 AND tenant_id = $6 AND deleted_at IS NULL
        RETURNING updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		note.Title,
		note.Content,
		note.ContentState,
		note.UpdatedBy,
		note.ID,
		note.TenantID,
	).Scan(&note.UpdatedAt)
	if err != nil {
		return err
	}

	return nil
}

// UpdateContentTx перезаписывает содержимое заметки внутри транзакции восстановления
func (r *NoteRepository) UpdateContentTx(ctx context.Context, tx *sqlx.Tx, note *domain.Note) error {
	query := `
        UPDATE notes
        SET title = $1,
            content = $2,
            content_state = $3,
            updated_by = $4,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $5
        RETURNING updated_at`

	err := tx.QueryRowContext(
		ctx,
		query,
		note.Title,
		note.Content,
		note.ContentState,
		note.UpdatedBy,
		note.ID,
	).Scan(&note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update note content: %w", err)
	}

	return nil
}

// SoftDelete помечает заметку удалённой; история версий сохраняется для аудита
func (r *NoteRepository) SoftDelete(ctx context.Context, id uuid.UUID, tenantID, actorID string) error {
	query := `
        UPDATE notes
        SET deleted_at = CURRENT_TIMESTAMP,
            updated_by = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, actorID, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (r *NoteRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"notevault/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var versionColumns = []string{
	"id", "note_id", "tenant_id", "version_number",
	"title", "content", "content_state", "reason", "changes_summary",
	"created_by", "updated_by", "created_at", "deleted_at",
}

type VersionRepository struct {
	db *sqlx.DB
}

func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Insert вставляет новую версию, выделяя следующий номер внутри запроса.
// Номер считается по всем строкам заметки, включая мягко удалённые, поэтому
// номера никогда не переиспользуются. Параллельное выделение одного номера
// упирается в уникальный индекс (note_id, version_number) и возвращает
// конфликт 23505, который вызывающая сторона обязана повторить.
func (r *VersionRepository) Insert(ctx context.Context, tx *sqlx.Tx, version *domain.NoteVersion) error {
	query := `
        INSERT INTO note_versions (
            id, note_id, tenant_id, version_number,
            title, content, content_state, reason, changes_summary,
            created_by, updated_by
        )
        VALUES (
            $1, $2, $3,
            COALESCE((SELECT MAX(version_number) FROM note_versions WHERE note_id = $2), 0) + 1,
            $4, $5, $6, $7, $8, $9, $9
        )
        RETURNING version_number, created_at`

	return tx.QueryRowContext(
		ctx,
		query,
		version.ID,
		version.NoteID,
		version.TenantID,
		version.Title,
		version.Content,
		version.ContentState,
		version.Reason,
		version.ChangesSummary,
		version.CreatedBy,
	).Scan(&version.VersionNumber, &version.CreatedAt)
}

// GetByID возвращает живую версию, ограниченную арендатором
func (r *VersionRepository) GetByID(ctx context.Context, id uuid.UUID, tenantID string) (*domain.NoteVersion, error) {
	var version domain.NoteVersion
	query := `
        SELECT * FROM note_versions
        WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, &version, query, id, tenantID)
	if err != nil {
		return nil, err
	}

	return &version, nil
}

// GetLatestAutosaveAt возвращает время последнего живого автоснимка заметки.
// Если автоснимков нет, возвращает nil.
func (r *VersionRepository) GetLatestAutosaveAt(ctx context.Context, noteID uuid.UUID) (*time.Time, error) {
	var createdAt time.Time
	query := `
        SELECT created_at FROM note_versions
        WHERE note_id = $1 AND reason = $2 AND deleted_at IS NULL
        ORDER BY created_at DESC
        LIMIT 1`

	err := r.db.GetContext(ctx, &createdAt, query, noteID, domain.ReasonAutosave)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest autosave: %w", err)
	}

	return &createdAt, nil
}

// List возвращает страницу живых версий заметки, новые первыми,
// с необязательным фильтром по причине снимка
func (r *VersionRepository) List(ctx context.Context, noteID uuid.UUID, query domain.VersionHistoryQuery) ([]domain.NoteVersion, int, error) {
	where := sq.And{
		sq.Eq{"note_id": noteID},
		sq.Expr("deleted_at IS NULL"),
	}
	if query.Reason != "" {
		where = append(where, sq.Eq{"reason": query.Reason})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").
		From("note_versions").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count versions: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	listSQL, listArgs, err := psql.Select(versionColumns...).
		From("note_versions").
		Where(where).
		OrderBy("created_at DESC", "version_number DESC").
		Limit(uint64(query.Limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	versions := []domain.NoteVersion{}
	if err := r.db.SelectContext(ctx, &versions, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list versions: %w", err)
	}

	return versions, total, nil
}

// PruneAutosaves мягко удаляет автоснимки за пределами окна хранения.
// Строка попадает под удаление только если она одновременно вне последних
// keep снимков и старше cutoff; ручные и восстановительные версии не трогаются.
// Повторный запуск ничего не меняет: удалённые строки исключены из ранжирования.
func (r *VersionRepository) PruneAutosaves(ctx context.Context, noteID uuid.UUID, keep int, cutoff time.Time) (int64, error) {
	query := `
        UPDATE note_versions
        SET deleted_at = CURRENT_TIMESTAMP
        WHERE id IN (
            SELECT id FROM (
                SELECT id,
                       created_at,
                       ROW_NUMBER() OVER (ORDER BY created_at DESC, version_number DESC) AS rn
                FROM note_versions
                WHERE note_id = $1 AND reason = $2 AND deleted_at IS NULL
            ) ranked
            WHERE ranked.rn > $3 AND ranked.created_at < $4
        )`

	result, err := r.db.ExecContext(ctx, query, noteID, domain.ReasonAutosave, keep, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune autosave versions: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return pruned, nil
}

// ListPrunableNoteIDs находит заметки, у которых остались живые автоснимки
// старше cutoff. Используется фоновой зачисткой для заметок без свежих записей.
func (r *VersionRepository) ListPrunableNoteIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var noteIDs []uuid.UUID
	query := `
        SELECT DISTINCT note_id FROM note_versions
        WHERE reason = $1 AND deleted_at IS NULL AND created_at < $2`

	err := r.db.SelectContext(ctx, &noteIDs, query, domain.ReasonAutosave, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find prunable notes: %w", err)
	}

	return noteIDs, nil
}

func (r *VersionRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

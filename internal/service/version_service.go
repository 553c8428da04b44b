package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"notevault/internal/config"
	"notevault/internal/domain"
	"notevault/internal/repository"
)

const (
	// Максимум попыток выделить номер версии при конфликте уникального индекса
	maxAllocationAttempts = 3

	// Время, отведённое отсоединённой зачистке снимков
	pruneTimeout = 30 * time.Second
)

// Определение пользовательских ошибок.
// Отказ в доступе намеренно неотличим от отсутствия записи,
// чтобы не раскрывать существование чужих заметок.
var (
	ErrNoteNotFound    = errors.New("note not found or access denied")
	ErrVersionNotFound = errors.New("version not found or access denied")
	ErrVersionMismatch = errors.New("version belongs to a different note")
	ErrInvalidReason   = errors.New("invalid version reason")
	ErrVersionConflict = errors.New("version number allocation failed")
)

// VersionService реализует движок истории версий заметок:
// запись снимков, окно автосохранения, восстановление и зачистку по политике хранения
type VersionService struct {
	noteRepo    *repository.NoteRepository
	versionRepo *repository.VersionRepository
	policy      config.VersioningConfig
	now         func() time.Time
}

func NewVersionService(
	noteRepo *repository.NoteRepository,
	versionRepo *repository.VersionRepository,
	policy config.VersioningConfig,
) *VersionService {
	return &VersionService{
		noteRepo:    noteRepo,
		versionRepo: versionRepo,
		policy:      policy,
		now:         time.Now,
	}
}

// CreateVersion снимает текущее состояние заметки в новую неизменяемую версию.
// Номер версии выделяется последовательно; гонка двух одновременных снимков
// разрешается повтором вставки после конфликта уникального индекса.
// После успешной вставки запускается отсоединённая зачистка старых автоснимков.
func (s *VersionService) CreateVersion(
	ctx context.Context,
	noteID uuid.UUID,
	tenantID string,
	actorID string,
	reason string,
	changesSummary *string,
) (*domain.NoteVersion, error) {
	if !domain.ValidReason(reason) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}

	note, err := s.noteRepo.GetByID(ctx, noteID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	version, err := s.insertSnapshot(ctx, note, reason, changesSummary, actorID)
	if err != nil {
		return nil, err
	}

	// Зачистка не должна задерживать ответ и не должна ронять запись
	s.dispatchPrune(noteID)

	return version, nil
}

// insertSnapshot вставляет снимок заметки с ограниченным числом повторов
// при конфликте выделения номера версии
func (s *VersionService) insertSnapshot(
	ctx context.Context,
	note *domain.Note,
	reason string,
	changesSummary *string,
	actorID string,
) (*domain.NoteVersion, error) {
	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		version := snapshotOf(note, reason, changesSummary, actorID)

		err := s.insertSnapshotOnce(ctx, version)
		if err == nil {
			return version, nil
		}

		if repository.IsUniqueViolation(err) {
			log.Printf("version number conflict for note %s (attempt %d/%d), retrying",
				note.ID, attempt, maxAllocationAttempts)
			continue
		}

		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	return nil, fmt.Errorf("%w: note %s", ErrVersionConflict, note.ID)
}

func (s *VersionService) insertSnapshotOnce(ctx context.Context, version *domain.NoteVersion) error {
	tx, err := s.versionRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.versionRepo.Insert(ctx, tx, version); err != nil {
		return err
	}

	return tx.Commit()
}

// ShouldCreateAutosaveVersion решает, пора ли снимать очередной автоснимок.
// Первый автоснимок создаётся всегда, дальше не чаще одного раза за интервал.
// Чистая проверка без записей.
func (s *VersionService) ShouldCreateAutosaveVersion(ctx context.Context, noteID uuid.UUID, tenantID string) (bool, error) {
	if _, err := s.noteRepo.GetByID(ctx, noteID, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNoteNotFound
		}
		return false, fmt.Errorf("failed to get note: %w", err)
	}

	lastAt, err := s.versionRepo.GetLatestAutosaveAt(ctx, noteID)
	if err != nil {
		return false, err
	}
	if lastAt == nil {
		return true, nil
	}

	return s.now().Sub(*lastAt) >= s.policy.AutosaveInterval, nil
}

// RestoreVersion атомарно откатывает заметку к выбранной исторической версии.
// Внутри одной транзакции состояние до отката сохраняется резервной версией
// с причиной restore, затем живая заметка перезаписывается содержимым цели.
// Сбой на любом шаге откатывает транзакцию целиком: ни осиротевшей резервной
// версии, ни частично обновлённой заметки не остаётся.
func (s *VersionService) RestoreVersion(
	ctx context.Context,
	noteID uuid.UUID,
	versionID uuid.UUID,
	tenantID string,
	actorID string,
) (*domain.RestoreResult, error) {
	target, err := s.versionRepo.GetByID(ctx, versionID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	if target.NoteID != noteID {
		return nil, fmt.Errorf("%w: version %s", ErrVersionMismatch, versionID)
	}

	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		result, err := s.restoreOnce(ctx, noteID, target, tenantID, actorID)
		if err == nil {
			return result, nil
		}

		// Конкурентный снимок мог забрать наш номер версии; повторяем транзакцию
		if repository.IsUniqueViolation(err) {
			log.Printf("restore conflict for note %s (attempt %d/%d), retrying",
				noteID, attempt, maxAllocationAttempts)
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("%w: note %s", ErrVersionConflict, noteID)
}

func (s *VersionService) restoreOnce(
	ctx context.Context,
	noteID uuid.UUID,
	target *domain.NoteVersion,
	tenantID string,
	actorID string,
) (*domain.RestoreResult, error) {
	tx, err := s.noteRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Блокировка строки заметки сериализует восстановления по одной заметке
	note, err := s.noteRepo.GetForUpdate(ctx, tx, noteID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to lock note: %w", err)
	}

	summary := fmt.Sprintf("restored to version %d", target.VersionNumber)
	backup := snapshotOf(note, domain.ReasonRestore, &summary, actorID)

	if err := s.versionRepo.Insert(ctx, tx, backup); err != nil {
		return nil, err
	}

	note.Title = target.Title
	note.Content = target.Content
	note.ContentState = target.ContentState
	note.UpdatedBy = actorID

	if err := s.noteRepo.UpdateContentTx(ctx, tx, note); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &domain.RestoreResult{
		Note:          note,
		BackupVersion: backup,
	}, nil
}

// GetVersionHistory возвращает страницу истории версий заметки, новые первыми.
// Чтения ограничены арендатором: отдельной проверки актора нет,
// история заметки видна любому актору её арендатора.
func (s *VersionService) GetVersionHistory(
	ctx context.Context,
	noteID uuid.UUID,
	tenantID string,
	query domain.VersionHistoryQuery,
) (*domain.VersionHistory, error) {
	if _, err := s.noteRepo.GetByID(ctx, noteID, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = 50
	}
	if query.Limit > 100 {
		query.Limit = 100
	}
	if query.Reason != "" &&
		query.Reason != domain.ReasonAutosave &&
		query.Reason != domain.ReasonManual &&
		query.Reason != domain.ReasonRestore {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, query.Reason)
	}

	versions, total, err := s.versionRepo.List(ctx, noteID, query)
	if err != nil {
		return nil, err
	}

	totalPages := (total + query.Limit - 1) / query.Limit

	return &domain.VersionHistory{
		Versions: versions,
		Pagination: domain.Pagination{
			Page:       query.Page,
			Limit:      query.Limit,
			TotalCount: total,
			TotalPages: totalPages,
		},
	}, nil
}

// GetVersion возвращает одну версию, доступную арендатору; актор не проверяется
func (s *VersionService) GetVersion(ctx context.Context, versionID uuid.UUID, tenantID string) (*domain.NoteVersion, error) {
	version, err := s.versionRepo.GetByID(ctx, versionID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return version, nil
}

// CompareVersions сравнивает два снимка одной заметки и возвращает флаги изменений.
// Как и остальные чтения, ограничен только арендатором.
func (s *VersionService) CompareVersions(ctx context.Context, versionID1, versionID2 uuid.UUID, tenantID string) (*domain.VersionComparison, error) {
	v1, err := s.GetVersion(ctx, versionID1, tenantID)
	if err != nil {
		return nil, err
	}

	v2, err := s.GetVersion(ctx, versionID2, tenantID)
	if err != nil {
		return nil, err
	}

	if v1.NoteID != v2.NoteID {
		return nil, fmt.Errorf("%w: versions %s and %s", ErrVersionMismatch, versionID1, versionID2)
	}

	return &domain.VersionComparison{
		Version1: v1,
		Version2: v2,
		Changes: domain.VersionChanges{
			TitleChanged:        v1.Title != v2.Title,
			ContentChanged:      v1.Content != v2.Content,
			ContentStateChanged: !bytes.Equal(v1.ContentState, v2.ContentState),
		},
	}, nil
}

// PruneOldVersions мягко удаляет автоснимки заметки, вышедшие из окна хранения:
// за пределами последних MaxAutosaveVersions и старше RetentionDays.
// Остаётся большее из двух: свежайшие N снимков либо всё за период хранения.
func (s *VersionService) PruneOldVersions(ctx context.Context, noteID uuid.UUID) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.policy.RetentionDays)
	return s.versionRepo.PruneAutosaves(ctx, noteID, s.policy.MaxAutosaveVersions, cutoff)
}

// SweepExpiredVersions прогоняет зачистку по всем заметкам с устаревшими
// автоснимками. Покрывает заметки, в которые давно не пишут: их не зачистит
// триггер при создании версии.
func (s *VersionService) SweepExpiredVersions(ctx context.Context) error {
	cutoff := s.now().AddDate(0, 0, -s.policy.RetentionDays)

	noteIDs, err := s.versionRepo.ListPrunableNoteIDs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list prunable notes: %w", err)
	}

	for _, noteID := range noteIDs {
		pruned, err := s.versionRepo.PruneAutosaves(ctx, noteID, s.policy.MaxAutosaveVersions, cutoff)
		if err != nil {
			// Логируем и продолжаем: одна заметка не должна срывать весь обход
			log.Printf("warning: failed to prune versions for note %s: %v", noteID, err)
			continue
		}
		if pruned > 0 {
			log.Printf("pruned %d autosave versions for note %s", pruned, noteID)
		}
	}

	return nil
}

// dispatchPrune запускает зачистку в отсоединённой горутине.
// Ошибка зачистки логируется и никогда не доходит до вызывающей стороны.
func (s *VersionService) dispatchPrune(noteID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()

		pruned, err := s.PruneOldVersions(ctx, noteID)
		if err != nil {
			log.Printf("warning: failed to prune versions for note %s: %v", noteID, err)
			return
		}
		if pruned > 0 {
			log.Printf("pruned %d autosave versions for note %s", pruned, noteID)
		}
	}()
}

// snapshotOf копирует текущее состояние заметки в новую версию.
// Номер версии выделяет база при вставке.
func snapshotOf(note *domain.Note, reason string, changesSummary *string, actorID string) *domain.NoteVersion {
	return &domain.NoteVersion{
		ID:             uuid.New(),
		NoteID:         note.ID,
		TenantID:       note.TenantID,
		Title:          note.Title,
		Content:        note.Content,
		ContentState:   note.ContentState,
		Reason:         reason,
		ChangesSummary: changesSummary,
		CreatedBy:      actorID,
		UpdatedBy:      actorID,
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"notevault/internal/domain"
	"notevault/internal/repository"
)

var errInvalidNote = errors.New("invalid note")

// NoteService отвечает за жизненный цикл заметок.
// Путь редактирования снимает состояние до правки через движок версий.
type NoteService struct {
	noteRepo       *repository.NoteRepository
	versionService *VersionService
}

func NewNoteService(noteRepo *repository.NoteRepository, versionService *VersionService) *NoteService {
	return &NoteService{
		noteRepo:       noteRepo,
		versionService: versionService,
	}
}

func (s *NoteService) CreateNote(ctx context.Context, tenantID, actorID string, input domain.NoteInput) (*domain.Note, error) {
	if tenantID == "" || actorID == "" {
		return nil, fmt.Errorf("%w: missing tenant or actor", errInvalidNote)
	}

	note := &domain.Note{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Title:        input.Title,
		Content:      input.Content,
		ContentState: input.ContentState,
		CreatedBy:    actorID,
		UpdatedBy:    actorID,
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}

	return note, nil
}

func (s *NoteService) GetNote(ctx context.Context, noteID uuid.UUID, tenantID string) (*domain.Note, error) {
	note, err := s.noteRepo.GetByID(ctx, noteID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return note, nil
}

func (s *NoteService) ListNotes(ctx context.Context, tenantID string, page, limit int) ([]domain.Note, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	total, err := s.noteRepo.Count(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}

	notes, err := s.noteRepo.List(ctx, tenantID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}

	return notes, total, nil
}

// UpdateNote перезаписывает заметку, предварительно сохранив её прежнее
// состояние в историю версий. Явное сохранение даёт снимок manual; автосейв
// снимает autosave-версию только когда окно автосохранения это разрешает.
// Неудавшийся снимок отменяет правку: история дороже свежей записи.
func (s *NoteService) UpdateNote(
	ctx context.Context,
	noteID uuid.UUID,
	tenantID string,
	actorID string,
	input domain.NoteInput,
	autosave bool,
	changesSummary *string,
) (*domain.Note, error) {
	snapshotDue := true
	reason := domain.ReasonManual

	if autosave {
		reason = domain.ReasonAutosave
		due, err := s.versionService.ShouldCreateAutosaveVersion(ctx, noteID, tenantID)
		if err != nil {
			return nil, err
		}
		snapshotDue = due
	}

	if snapshotDue {
		if _, err := s.versionService.CreateVersion(ctx, noteID, tenantID, actorID, reason, changesSummary); err != nil {
			return nil, err
		}
	}

	note, err := s.GetNote(ctx, noteID, tenantID)
	if err != nil {
		return nil, err
	}

	note.Title = input.Title
	note.Content = input.Content
	note.ContentState = input.ContentState
	note.UpdatedBy = actorID

	if err := s.noteRepo.Update(ctx, note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	return note, nil
}

// DeleteNote мягко удаляет заметку; история версий остаётся для аудита
func (s *NoteService) DeleteNote(ctx context.Context, noteID uuid.UUID, tenantID, actorID string) error {
	err := s.noteRepo.SoftDelete(ctx, noteID, tenantID, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return ErrNoteNotFound
		}
		return err
	}

	return nil
}

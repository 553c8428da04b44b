package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Причины создания снимка заметки
const (
	ReasonAutosave = "autosave"
	ReasonManual   = "manual"
	ReasonRestore  = "restore"
)

type NoteVersion struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	NoteID         uuid.UUID       `json:"note_id" db:"note_id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	VersionNumber  int             `json:"version_number" db:"version_number"`
	Title          string          `json:"title" db:"title"`
	Content        string          `json:"content" db:"content"`
	ContentState   json.RawMessage `json:"content_state,omitempty" db:"content_state"`
	Reason         string          `json:"reason" db:"reason"`
	ChangesSummary *string         `json:"changes_summary,omitempty" db:"changes_summary"`
	CreatedBy      string          `json:"created_by" db:"created_by"`
	UpdatedBy      string          `json:"updated_by" db:"updated_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// VersionHistoryQuery задаёт параметры постраничной выборки истории
type VersionHistoryQuery struct {
	Page   int
	Limit  int
	Reason string
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

type VersionHistory struct {
	Versions   []NoteVersion `json:"versions"`
	Pagination Pagination    `json:"pagination"`
}

// RestoreResult возвращается оркестратором восстановления:
// обновлённая заметка плюс резервная версия с состоянием до отката
type RestoreResult struct {
	Note          *Note        `json:"note"`
	BackupVersion *NoteVersion `json:"backup_version"`
}

type VersionChanges struct {
	TitleChanged        bool `json:"title_changed"`
	ContentChanged      bool `json:"content_changed"`
	ContentStateChanged bool `json:"content_state_changed"`
}

type VersionComparison struct {
	Version1 *NoteVersion   `json:"version1"`
	Version2 *NoteVersion   `json:"version2"`
	Changes  VersionChanges `json:"changes"`
}

// ValidReason проверяет причину снимка, допустимую для внешних вызовов.
// Причина restore зарезервирована за оркестратором восстановления.
func ValidReason(reason string) bool {
	return reason == ReasonAutosave || reason == ReasonManual
}

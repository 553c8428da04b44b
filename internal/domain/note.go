package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Note struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	TenantID     string          `json:"tenant_id" db:"tenant_id"`
	Title        string          `json:"title" db:"title"`
	Content      string          `json:"content" db:"content"`
	ContentState json.RawMessage `json:"content_state,omitempty" db:"content_state"`
	CreatedBy    string          `json:"created_by" db:"created_by"`
	UpdatedBy    string          `json:"updated_by" db:"updated_by"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// NoteInput содержит изменяемые поля заметки при создании и обновлении
type NoteInput struct {
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	ContentState json.RawMessage `json:"content_state,omitempty"`
}

package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"notevault/internal/auth"
	"notevault/internal/domain"
	"notevault/internal/service"
)

var validate = validator.New()

type NoteHandler struct {
	noteService *service.NoteService
}

func NewNoteHandler(noteService *service.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

type noteRequest struct {
	Title          string          `json:"title" validate:"required,max=500"`
	Content        string          `json:"content"`
	ContentState   json.RawMessage `json:"content_state"`
	Autosave       bool            `json:"autosave"`
	ChangesSummary *string         `json:"changes_summary" validate:"omitempty,max=1000"`
}

// CreateNote обрабатывает запрос на создание заметки
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	note, err := h.noteService.CreateNote(r.Context(), identity.TenantID, identity.ActorID, domain.NoteInput{
		Title:        req.Title,
		Content:      req.Content,
		ContentState: req.ContentState,
	})
	if err != nil {
		log.Printf("Failed to create note: %v", err)
		http.Error(w, "Failed to create note", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(note)
}

// GetNote обрабатывает запрос на получение заметки
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	noteID, err := uuid.Parse(chi.URLParam(r, "noteID"))
	if err != nil {
		http.Error(w, "Invalid note id", http.StatusBadRequest)
		return
	}

	note, err := h.noteService.GetNote(r.Context(), noteID, identity.TenantID)
	if err != nil {
		respondServiceError(w, err, "Failed to get note")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(note)
}

// ListNotes обрабатывает запрос на список заметок арендатора
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)

	notes, total, err := h.noteService.ListNotes(r.Context(), identity.TenantID, page, limit)
	if err != nil {
		log.Printf("Failed to list notes: %v", err)
		http.Error(w, "Failed to list notes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"notes": notes,
		"total": total,
	})
}

// UpdateNote обрабатывает запрос на правку заметки.
// Состояние до правки уходит в историю версий: manual для явного сохранения,
// autosave, когда клиент помечает запись автосейвом и окно это разрешает.
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	noteID, err := uuid.Parse(chi.URLParam(r, "noteID"))
	if err != nil {
		http.Error(w, "Invalid note id", http.StatusBadRequest)
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	note, err := h.noteService.UpdateNote(
		r.Context(),
		noteID,
		identity.TenantID,
		identity.ActorID,
		domain.NoteInput{
			Title:        req.Title,
			Content:      req.Content,
			ContentState: req.ContentState,
		},
		req.Autosave,
		req.ChangesSummary,
	)
	if err != nil {
		respondServiceError(w, err, "Failed to update note")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(note)
}

// DeleteNote обрабатывает запрос на удаление заметки
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	noteID, err := uuid.Parse(chi.URLParam(r, "noteID"))
	if err != nil {
		http.Error(w, "Invalid note id", http.StatusBadRequest)
		return
	}

	if err := h.noteService.DeleteNote(r.Context(), noteID, identity.TenantID, identity.ActorID); err != nil {
		respondServiceError(w, err, "Failed to delete note")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError переводит ошибки сервисного слоя в HTTP-статусы
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNoteNotFound) || errors.Is(err, service.ErrVersionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrVersionMismatch) || errors.Is(err, service.ErrInvalidReason):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("%s: %v", fallback, err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return def
	}

	return value
}

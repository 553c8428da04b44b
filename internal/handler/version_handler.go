package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"notevault/internal/auth"
	"notevault/internal/domain"
	"notevault/internal/service"
)

type VersionHandler struct {
	versionService *service.VersionService
}

func NewVersionHandler(versionService *service.VersionService) *VersionHandler {
	return &VersionHandler{versionService: versionService}
}

type createVersionRequest struct {
	Reason         string  `json:"reason" validate:"required,oneof=manual autosave"`
	ChangesSummary *string `json:"changes_summary" validate:"omitempty,max=1000"`
}

// CreateVersion обрабатывает запрос на снимок текущего состояния заметки
func (h *VersionHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
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

	var req createVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	version, err := h.versionService.CreateVersion(
		r.Context(),
		noteID,
		identity.TenantID,
		identity.ActorID,
		req.Reason,
		req.ChangesSummary,
	)
	if err != nil {
		respondServiceError(w, err, "Failed to create version")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(version)
}

// GetVersionHistory обрабатывает запрос на постраничную историю версий заметки
func (h *VersionHandler) GetVersionHistory(w http.ResponseWriter, r *http.Request) {
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

	history, err := h.versionService.GetVersionHistory(r.Context(), noteID, identity.TenantID, domain.VersionHistoryQuery{
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 50),
		Reason: r.URL.Query().Get("reason"),
	})
	if err != nil {
		respondServiceError(w, err, "Failed to get version history")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}

// ShouldCreateVersion обрабатывает проверку окна автосохранения
func (h *VersionHandler) ShouldCreateVersion(w http.ResponseWriter, r *http.Request) {
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

	shouldCreate, err := h.versionService.ShouldCreateAutosaveVersion(r.Context(), noteID, identity.TenantID)
	if err != nil {
		respondServiceError(w, err, "Failed to check autosave window")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"should_create": shouldCreate})
}

// GetVersion обрабатывает запрос на одну версию
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "versionID"))
	if err != nil {
		http.Error(w, "Invalid version id", http.StatusBadRequest)
		return
	}

	version, err := h.versionService.GetVersion(r.Context(), versionID, identity.TenantID)
	if err != nil {
		respondServiceError(w, err, "Failed to get version")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version)
}

// RestoreVersion обрабатывает откат заметки к исторической версии
func (h *VersionHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
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

	versionID, err := uuid.Parse(chi.URLParam(r, "versionID"))
	if err != nil {
		http.Error(w, "Invalid version id", http.StatusBadRequest)
		return
	}

	result, err := h.versionService.RestoreVersion(r.Context(), noteID, versionID, identity.TenantID, identity.ActorID)
	if err != nil {
		respondServiceError(w, err, "Failed to restore version")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// CompareVersions обрабатывает сравнение двух версий одной заметки
func (h *VersionHandler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fromID, err := uuid.Parse(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "Invalid 'from' version id", http.StatusBadRequest)
		return
	}

	toID, err := uuid.Parse(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "Invalid 'to' version id", http.StatusBadRequest)
		return
	}

	comparison, err := h.versionService.CompareVersions(r.Context(), fromID, toID, identity.TenantID)
	if err != nil {
		respondServiceError(w, err, "Failed to compare versions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(comparison)
}

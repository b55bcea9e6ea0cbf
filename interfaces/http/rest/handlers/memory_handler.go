package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"recall-backend/application/ports"
	"recall-backend/domain/memory"
	"recall-backend/pkg/auth"
	"recall-backend/pkg/common"
	pkgerrors "recall-backend/pkg/errors"
	"recall-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MemoryHandler handles memory-related HTTP requests
type MemoryHandler struct {
	repo   ports.MemoryRepository
	logger *zap.Logger
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(repo ports.MemoryRepository, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{repo: repo, logger: logger}
}

// MemoryRequest is the request body for creating or updating a memory.
type MemoryRequest struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Priority       string   `json:"priority,omitempty" validate:"omitempty,oneof=Low Medium High Urgent"`
	DateToRemember *string  `json:"date_to_remember,omitempty"`
	RelatedPerson  string   `json:"related_person,omitempty" validate:"omitempty,max=100"`
	RelatedTo      string   `json:"related_to,omitempty" validate:"omitempty,max=100"`
	Tags           []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
}

// MemoryResponse is the wire representation of a memory record.
type MemoryResponse struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Priority       string   `json:"priority"`
	PriorityColor  string   `json:"priority_color"`
	DateToRemember *string  `json:"date_to_remember,omitempty"`
	RelatedPerson  string   `json:"related_person,omitempty"`
	RelatedTo      string   `json:"related_to,omitempty"`
	Tags           []string `json:"tags"`
	IsCompleted    bool     `json:"is_completed"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	Source         string   `json:"source"`
}

// NewMemoryResponse maps a record onto the wire shape.
func NewMemoryResponse(m *memory.Memory) MemoryResponse {
	resp := MemoryResponse{
		ID:            m.ID,
		UserID:        m.UserID,
		Title:         m.Title,
		Description:   m.Description,
		Priority:      string(m.Priority),
		PriorityColor: m.Priority.Color(),
		RelatedPerson: m.RelatedPerson,
		RelatedTo:     m.RelatedTo,
		Tags:          m.Tags,
		IsCompleted:   m.IsCompleted,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:     m.UpdatedAt.Format(time.RFC3339Nano),
		Source:        string(m.Source),
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if m.DateToRemember != nil {
		d := m.DateToRemember.Format(time.RFC3339Nano)
		resp.DateToRemember = &d
	}
	return resp
}

// NewMemoryListResponse maps a record list onto the wire shape.
func NewMemoryListResponse(memories []memory.Memory) []MemoryResponse {
	out := make([]MemoryResponse, 0, len(memories))
	for i := range memories {
		out = append(out, NewMemoryResponse(&memories[i]))
	}
	return out
}

func (req *MemoryRequest) apply(m *memory.Memory) error {
	m.Title = req.Title
	m.Description = req.Description
	m.RelatedPerson = req.RelatedPerson
	m.RelatedTo = req.RelatedTo
	if req.Tags != nil {
		m.Tags = req.Tags
	}
	if req.Priority != "" {
		priority, ok := memory.ParsePriority(req.Priority)
		if !ok {
			return pkgerrors.NewValidationError("unknown priority: " + req.Priority)
		}
		m.Priority = priority
	}
	if req.DateToRemember != nil {
		if *req.DateToRemember == "" {
			m.DateToRemember = nil
		} else {
			d, err := time.Parse(time.RFC3339, *req.DateToRemember)
			if err != nil {
				return pkgerrors.NewValidationError("date_to_remember must be RFC3339")
			}
			m.DateToRemember = &d
		}
	}
	return nil
}

// CreateMemory handles POST /memories
func (h *MemoryHandler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		common.RespondAppError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	var req MemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Validation error: "+err.Error())
		return
	}

	m, err := memory.New(userID, req.Title)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if err := req.apply(m); err != nil {
		common.RespondAppError(w, err)
		return
	}

	created, err := h.repo.Create(r.Context(), *m)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, NewMemoryResponse(created))
}

// ListMemories handles GET /memories. Query parameters select the gateway
// operation: q searches, priority/completed filter, nothing fetches all.
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		common.RespondAppError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	query := r.URL.Query()
	var (
		memories []memory.Memory
		err      error
	)
	switch {
	case query.Get("q") != "":
		memories, err = h.repo.Search(r.Context(), userID, query.Get("q"))
	case query.Get("priority") != "" || query.Get("completed") != "":
		var priority *memory.Priority
		if s := query.Get("priority"); s != "" {
			p, ok := memory.ParsePriority(s)
			if !ok {
				common.RespondError(w, http.StatusBadRequest, "VALIDATION", "unknown priority: "+s)
				return
			}
			priority = &p
		}
		var completed *bool
		if s := query.Get("completed"); s != "" {
			v := s == "true" || s == "1"
			completed = &v
		}
		memories, err = h.repo.Filter(r.Context(), userID, priority, completed)
	default:
		memories, err = h.repo.Fetch(r.Context(), userID)
	}
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, NewMemoryListResponse(memories))
}

// GetMemory handles GET /memories/{memoryID}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	m, err := h.repo.FetchOne(r.Context(), id)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, NewMemoryResponse(m))
}

// UpdateMemory handles PUT /memories/{memoryID}
func (h *MemoryHandler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")

	var req MemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Validation error: "+err.Error())
		return
	}

	existing, err := h.repo.FetchOne(r.Context(), id)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	m := *existing
	if err := req.apply(&m); err != nil {
		common.RespondAppError(w, err)
		return
	}
	if err := m.Validate(); err != nil {
		common.RespondAppError(w, err)
		return
	}

	if err := h.repo.Update(r.Context(), m); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, NewMemoryResponse(&m))
}

// DeleteMemory handles DELETE /memories/{memoryID}
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		common.RespondAppError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	id := chi.URLParam(r, "memoryID")
	if err := h.repo.Delete(r.Context(), id, userID); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"id": id, "message": "memory deleted"})
}

// ToggleMemory handles POST /memories/{memoryID}/toggle
func (h *MemoryHandler) ToggleMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	if err := h.repo.ToggleCompletion(r.Context(), id); err != nil {
		common.RespondAppError(w, err)
		return
	}

	m, err := h.repo.FetchOne(r.Context(), id)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, NewMemoryResponse(m))
}

// MigrateLegacy handles POST /memories/migrate. Clients call this once per
// session; it is a no-op when no legacy data exists.
func (h *MemoryHandler) MigrateLegacy(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		common.RespondAppError(w, pkgerrors.NewUnauthorizedError(""))
		return
	}

	if err := h.repo.MigrateLegacyIfPresent(r.Context(), userID); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "migration complete"})
}

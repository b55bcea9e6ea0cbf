package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"recall-backend/application/assistant"
	"recall-backend/application/ports"
	"recall-backend/pkg/common"
	"recall-backend/pkg/utils"

	"go.uber.org/zap"
)

// AssistantHandler creates memories from voice-assistant phrases.
type AssistantHandler struct {
	parser *assistant.Parser
	repo   ports.MemoryRepository
	logger *zap.Logger
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(parser *assistant.Parser, repo ports.MemoryRepository, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{parser: parser, repo: repo, logger: logger}
}

// AssistantRequest is a spoken phrase forwarded by the assistant shortcut.
type AssistantRequest struct {
	Phrase string `json:"phrase" validate:"required,max=500"`
	Intent string `json:"intent,omitempty" validate:"omitempty,oneof=remember remember_urgent remember_person"`
	Person string `json:"person,omitempty" validate:"omitempty,max=100"`
}

// AssistantResponse carries the saved record plus the dialog line the
// assistant speaks back.
type AssistantResponse struct {
	Dialog string         `json:"dialog"`
	Memory MemoryResponse `json:"memory"`
}

// CreateFromPhrase handles POST /assistant/memories
func (h *AssistantHandler) CreateFromPhrase(w http.ResponseWriter, r *http.Request) {
	var req AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Validation error: "+err.Error())
		return
	}

	m, err := h.parser.ParseMemory(req.Phrase, assistant.ParseIntentKind(req.Intent), req.Person, time.Now())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	created, err := h.repo.Create(r.Context(), *m)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	h.logger.Debug("assistant memory created",
		zap.String("memoryID", created.ID),
		zap.String("intent", req.Intent),
	)
	common.RespondJSON(w, http.StatusCreated, AssistantResponse{
		Dialog: "Saved: " + created.Title,
		Memory: NewMemoryResponse(created),
	})
}

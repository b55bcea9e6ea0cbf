package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"recall-backend/application/ports"
	"recall-backend/domain/user"
	"recall-backend/pkg/auth"
	"recall-backend/pkg/common"
	pkgerrors "recall-backend/pkg/errors"
	"recall-backend/pkg/utils"

	"go.uber.org/zap"
)

// ProfileHandler handles user-profile HTTP requests
type ProfileHandler struct {
	users  ports.UserRepository
	logger *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(users ports.UserRepository, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

// ProfileResponse is the wire representation of a user profile.
type ProfileResponse struct {
	ID                   string `json:"id"`
	Email                string `json:"email"`
	FullName             string `json:"full_name"`
	DisplayName          string `json:"display_name"`
	Initials             string `json:"initials"`
	ProfileImageURL      string `json:"profile_image_url,omitempty"`
	AuthProvider         string `json:"auth_provider"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
	TotalMemories        int    `json:"total_memories"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	IsPremium            bool   `json:"is_premium"`
}

func newProfileResponse(u *user.User) ProfileResponse {
	return ProfileResponse{
		ID:                   u.ID,
		Email:                u.Email,
		FullName:             u.FullName,
		DisplayName:          u.DisplayName(),
		Initials:             u.Initials(),
		ProfileImageURL:      u.ProfileImageURL,
		AuthProvider:         string(u.AuthProvider),
		CreatedAt:            u.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:            u.UpdatedAt.Format(time.RFC3339Nano),
		TotalMemories:        u.TotalMemories,
		NotificationsEnabled: u.NotificationsEnabled,
		IsPremium:            u.IsPremium,
	}
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	FullName        *string `json:"full_name,omitempty" validate:"omitempty,max=100"`
	ProfileImageURL *string `json:"profile_image_url,omitempty" validate:"omitempty,url"`
}

// NotificationsRequest toggles the notification preference.
type NotificationsRequest struct {
	Enabled bool `json:"enabled"`
}

// GetProfile handles GET /profile. A first request after sign-up creates the
// profile from the token claims.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	u, err := h.users.Get(r.Context(), claims.UserID)
	if pkgerrors.IsNotFound(err) && claims.Email != "" {
		u, err = h.createProfile(r, claims)
	}
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newProfileResponse(u))
}

func (h *ProfileHandler) createProfile(r *http.Request, claims *auth.Claims) (*user.User, error) {
	u, err := user.New(claims.UserID, claims.Email, user.ProviderEmail)
	if err != nil {
		return nil, err
	}
	if err := h.users.Save(r.Context(), u); err != nil {
		return nil, err
	}
	h.logger.Info("created user profile", zap.String("userID", u.ID))
	return u, nil
}

// UpdateProfile handles PUT /profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Validation error: "+err.Error())
		return
	}

	if err := h.users.UpdateProfile(r.Context(), claims.UserID, req.FullName, req.ProfileImageURL); err != nil {
		common.RespondAppError(w, err)
		return
	}

	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newProfileResponse(u))
}

// SetNotifications handles POST /profile/notifications
func (h *ProfileHandler) SetNotifications(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	var req NotificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Invalid request body: "+err.Error())
		return
	}

	if err := h.users.SetNotificationsEnabled(r.Context(), claims.UserID, req.Enabled); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]bool{"notifications_enabled": req.Enabled})
}

package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgbase/orgbase/internal/apperrors"
	"github.com/orgbase/orgbase/internal/audit"
	"github.com/orgbase/orgbase/internal/auth"
	"github.com/orgbase/orgbase/internal/orgs"
	"github.com/orgbase/orgbase/internal/validation"
	"github.com/rs/zerolog/log"
)

// ProfileUpdateRequest represents the profile update payload.
// Absent fields are left unchanged.
type ProfileUpdateRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

// HandleGetProfile handles GET /api/v1/user/profile
func HandleGetProfile(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		service := NewService(pool)
		user, err := service.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				apperrors.WriteNotFound(w, r, "User not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load profile")
			apperrors.WriteInternalError(w, r, "Failed to load profile")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user": user,
		})
	}
}

// HandleUpdateProfile handles PATCH /api/v1/user/profile
func HandleUpdateProfile(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req ProfileUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if req.DisplayName == nil && req.Bio == nil && req.AvatarURL == nil {
			apperrors.WriteBadRequest(w, r, "Nothing to update")
			return
		}

		if req.DisplayName != nil {
			trimmed := strings.TrimSpace(*req.DisplayName)
			if err := validation.ValidateDisplayName(trimmed); err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			req.DisplayName = &trimmed
		}
		if req.Bio != nil {
			if err := validation.ValidateBio(*req.Bio); err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
		}
		if req.AvatarURL != nil {
			if err := validation.ValidateAvatarURL(*req.AvatarURL); err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
		}

		service := NewService(pool)
		user, err := service.UpdateProfile(ctx, userID, ProfileUpdate{
			DisplayName: req.DisplayName,
			Bio:         req.Bio,
			AvatarURL:   req.AvatarURL,
		})
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				apperrors.WriteNotFound(w, r, "User not found")
				return
			}
			log.Error().Err(err).Msg("Failed to update profile")
			apperrors.WriteInternalError(w, r, "Failed to update profile")
			return
		}

		if err := auditor.LogProfileUpdated(ctx, userID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user": user,
		})
	}
}

// HandleListUserOrgs handles GET /api/v1/user/orgs
func HandleListUserOrgs(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		list, err := orgs.NewService(pool).ListUserOrgs(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list user organizations")
			apperrors.WriteInternalError(w, r, "Failed to list organizations")
			return
		}

		type item struct {
			OrgID   string       `json:"org_id"`
			Name    string       `json:"name"`
			Slug    string       `json:"slug"`
			Role    orgs.OrgRole `json:"role"`
			IsOwner bool         `json:"is_owner"`
		}

		resp := make([]item, len(list))
		for i, org := range list {
			resp[i] = item{
				OrgID:   org.ID.String(),
				Name:    org.Name,
				Slug:    org.Slug,
				Role:    org.Role,
				IsOwner: org.OwnerUserID == userID,
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"orgs": resp,
		})
	}
}

package orgs

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgbase/orgbase/internal/apperrors"
	"github.com/orgbase/orgbase/internal/audit"
	"github.com/orgbase/orgbase/internal/auth"
	"github.com/rs/zerolog/log"
)

// HandleListMembers handles GET /api/v1/orgs/{org_id}/members
func HandleListMembers(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := orgIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		service := NewService(pool)
		if _, err := service.RequireMember(ctx, userID, orgID); err != nil {
			if writeAuthzError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to authorize")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		members, err := service.ListMembers(ctx, orgID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list members")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"members": members,
		})
	}
}

// HandleRemoveMember handles DELETE /api/v1/orgs/{org_id}/members/{member_id}
func HandleRemoveMember(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		orgID, err := orgIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		membershipID, err := uuid.Parse(chi.URLParam(r, "member_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid member ID")
			return
		}

		service := NewService(pool)
		removed, err := service.RemoveMember(ctx, orgID, actorUserID, membershipID)
		if err != nil {
			if writeAuthzError(w, r, err) {
				return
			}
			if errors.Is(err, ErrMemberNotFound) {
				apperrors.WriteNotFound(w, r, "Member not found")
				return
			}
			if errors.Is(err, ErrCannotRemoveSelf) {
				apperrors.WriteBadRequest(w, r, "You cannot remove yourself from the organization")
				return
			}
			if errors.Is(err, ErrCannotRemoveOwner) {
				apperrors.WriteForbidden(w, r, "The organization owner cannot be removed")
				return
			}

			log.Error().Err(err).Msg("Failed to remove member")
			apperrors.WriteInternalError(w, r, "Failed to remove member")
			return
		}

		if err := auditor.LogOrgMemberRemoved(ctx, orgID, actorUserID, removed.UserID, string(removed.Role)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"removed": true,
		})
	}
}

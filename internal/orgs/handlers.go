package orgs

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgbase/orgbase/internal/apperrors"
	"github.com/orgbase/orgbase/internal/audit"
	"github.com/orgbase/orgbase/internal/auth"
	"github.com/orgbase/orgbase/internal/validation"
	"github.com/rs/zerolog/log"
)

// CreateRequest represents the request to create an organization
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// UpdateRequest represents the request to update an organization
type UpdateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// OrgResponse is the public shape of an organization
type OrgResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrgListItemResponse is an organization combined with the caller's role
type OrgListItemResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Slug    string    `json:"slug"`
	Role    OrgRole   `json:"role"`
	IsOwner bool      `json:"is_owner"`
}

func toOrgResponse(org *Org) OrgResponse {
	return OrgResponse{
		ID:          org.ID,
		Name:        org.Name,
		Slug:        org.Slug,
		OwnerUserID: org.OwnerUserID,
		CreatedAt:   org.CreatedAt,
	}
}

// writeAuthzError maps guard errors onto the boundary taxonomy.
// Both "not a member" and "insufficient role" are forbidden to the caller.
func writeAuthzError(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, ErrNotMember) {
		apperrors.WriteForbidden(w, r, "You are not a member of this organization")
		return true
	}
	if errors.Is(err, ErrInsufficientRole) {
		apperrors.WriteForbidden(w, r, "Insufficient role")
		return true
	}
	return false
}

func orgIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "org_id"))
}

// HandleCreate handles POST /api/v1/orgs
func HandleCreate(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Organization name is required")
			return
		}
		if req.Slug == "" {
			apperrors.WriteBadRequest(w, r, "Organization slug is required")
			return
		}

		req.Slug = validation.NormalizeSlug(req.Slug)
		if err := validation.ValidateSlug(req.Slug); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		org, err := service.CreateWithOwner(ctx, req.Name, req.Slug, userID)
		if err != nil {
			if errors.Is(err, ErrSlugConflict) {
				apperrors.WriteConflict(w, r, "Organization slug already exists")
				return
			}
			log.Error().Err(err).Msg("Failed to create organization")
			apperrors.WriteInternalError(w, r, "Failed to create organization")
			return
		}

		if err := auditor.LogOrgCreated(ctx, org.ID, userID, org.Slug); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"org": toOrgResponse(org),
		})
	}
}

// HandleList handles GET /api/v1/orgs
func HandleList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		service := NewService(pool)
		list, err := service.ListUserOrgs(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list organizations")
			apperrors.WriteInternalError(w, r, "Failed to list organizations")
			return
		}

		resp := make([]OrgListItemResponse, len(list))
		for i, org := range list {
			resp[i] = OrgListItemResponse{
				ID:      org.ID,
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

// HandleGet handles GET /api/v1/orgs/{org_id}
func HandleGet(pool *pgxpool.Pool) http.HandlerFunc {
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
			apperrors.WriteInternalError(w, r, "Failed to load organization")
			return
		}

		org, err := service.GetByID(ctx, orgID)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load organization")
			apperrors.WriteInternalError(w, r, "Failed to load organization")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"org": toOrgResponse(org),
		})
	}
}

// HandleUpdate handles PATCH /api/v1/orgs/{org_id}
func HandleUpdate(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := orgIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if req.Name == "" && req.Slug == "" {
			apperrors.WriteBadRequest(w, r, "Nothing to update")
			return
		}
		if req.Slug != "" {
			req.Slug = validation.NormalizeSlug(req.Slug)
			if err := validation.ValidateSlug(req.Slug); err != nil {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
		}

		service := NewService(pool)
		if _, err := service.RequireAdmin(ctx, userID, orgID); err != nil {
			if writeAuthzError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to authorize")
			apperrors.WriteInternalError(w, r, "Failed to update organization")
			return
		}

		org, err := service.Update(ctx, orgID, req.Name, req.Slug)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			if errors.Is(err, ErrSlugConflict) {
				apperrors.WriteConflict(w, r, "Organization slug already exists")
				return
			}
			log.Error().Err(err).Msg("Failed to update organization")
			apperrors.WriteInternalError(w, r, "Failed to update organization")
			return
		}

		if err := auditor.LogOrgUpdated(ctx, org.ID, userID, org.Slug); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"org": toOrgResponse(org),
		})
	}
}

// HandleDelete handles DELETE /api/v1/orgs/{org_id}
func HandleDelete(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := orgIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		service := NewService(pool)
		grant, err := service.RequireAdmin(ctx, userID, orgID)
		if err != nil {
			if writeAuthzError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to authorize")
			apperrors.WriteInternalError(w, r, "Failed to delete organization")
			return
		}

		// Deletion is reserved for the owner, not every ADMIN.
		if !grant.IsOwner {
			apperrors.WriteForbidden(w, r, "Only the organization owner can delete the organization")
			return
		}

		org, err := service.GetByID(ctx, orgID)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load organization")
			apperrors.WriteInternalError(w, r, "Failed to delete organization")
			return
		}

		if err := service.Delete(ctx, orgID); err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to delete organization")
			apperrors.WriteInternalError(w, r, "Failed to delete organization")
			return
		}

		if err := auditor.LogOrgDeleted(ctx, orgID, userID, org.Slug); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

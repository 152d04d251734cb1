package invites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgbase/orgbase/internal/apperrors"
	"github.com/orgbase/orgbase/internal/audit"
	"github.com/orgbase/orgbase/internal/auth"
	"github.com/orgbase/orgbase/internal/config"
	"github.com/orgbase/orgbase/internal/mailer"
	"github.com/orgbase/orgbase/internal/orgs"
	"github.com/orgbase/orgbase/internal/validation"
	"github.com/rs/zerolog/log"
)

type CreateRequest struct {
	OrgID uuid.UUID    `json:"org_id"`
	Email string       `json:"email"`
	Role  orgs.OrgRole `json:"role"`
}

type CreateResponse struct {
	ID        uuid.UUID    `json:"id"`
	Email     string       `json:"email"`
	Role      orgs.OrgRole `json:"role"`
	ExpiresAt time.Time    `json:"expires_at"`
	Token     string       `json:"token"`
	AcceptURL string       `json:"accept_url"`
}

type AcceptRequest struct {
	Token string `json:"token"`
}

// writeAuthzError maps guard errors onto the boundary taxonomy.
func writeAuthzError(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, orgs.ErrNotMember) {
		apperrors.WriteForbidden(w, r, "You are not a member of this organization")
		return true
	}
	if errors.Is(err, orgs.ErrInsufficientRole) {
		apperrors.WriteForbidden(w, r, "Insufficient role")
		return true
	}
	return false
}

// HandleCreateForOrg handles POST /api/v1/orgs/{org_id}/invites
func HandleCreateForOrg(pool *pgxpool.Pool, cfg *config.Config, auditor *audit.Writer, sender mailer.Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		req.OrgID = orgID

		createInvite(w, r, req, pool, cfg, auditor, sender)
	}
}

// HandleCreate handles POST /api/v1/invites (org_id in the body).
// Equivalent to the org-scoped surface; both call into the same workflow.
func HandleCreate(pool *pgxpool.Pool, cfg *config.Config, auditor *audit.Writer, sender mailer.Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.OrgID == uuid.Nil {
			apperrors.WriteBadRequest(w, r, "Organization ID is required")
			return
		}

		createInvite(w, r, req, pool, cfg, auditor, sender)
	}
}

func createInvite(w http.ResponseWriter, r *http.Request, req CreateRequest, pool *pgxpool.Pool, cfg *config.Config, auditor *audit.Writer, sender mailer.Sender) {
	ctx := r.Context()
	userID := auth.GetUserID(ctx)

	if req.Role == "" {
		req.Role = orgs.RoleMember
	}
	if !req.Role.IsValid() {
		apperrors.WriteBadRequest(w, r, "Invalid role")
		return
	}

	email, err := validation.NormalizeEmail(req.Email)
	if err != nil {
		apperrors.WriteBadRequest(w, r, err.Error())
		return
	}
	req.Email = email

	orgService := orgs.NewService(pool)
	service := NewService(pool, orgService, cfg.InviteTTLDays)

	invite, token, err := service.Create(ctx, req.OrgID, userID, req.Email, req.Role)
	if err != nil {
		if writeAuthzError(w, r, err) {
			return
		}
		if errors.Is(err, ErrDuplicateInvite) {
			apperrors.WriteConflict(w, r, "A pending invite already exists for this email")
			return
		}
		if errors.Is(err, ErrAlreadyMember) {
			apperrors.WriteConflict(w, r, "This email already belongs to a member of the organization")
			return
		}

		log.Error().Err(err).Msg("Failed to create invite")
		apperrors.WriteInternalError(w, r, "Failed to create invite")
		return
	}

	if err := auditor.LogInviteCreated(ctx, invite.OrgID, userID, invite.ID, invite.Email, string(invite.Role)); err != nil {
		log.Error().Err(err).Msg("Failed to log audit event")
	}

	acceptURL := cfg.BaseURL + "/invites/accept?token=" + url.QueryEscape(token)

	// Email dispatch is best-effort: a failed send never rolls back the
	// invite, it is surfaced to the caller as email_sent=false.
	emailSent := true
	if err := dispatchInviteEmail(ctx, pool, sender, invite, acceptURL); err != nil {
		log.Warn().
			Err(err).
			Str("invite_id", invite.ID.String()).
			Str("email", invite.Email).
			Msg("Invite created but email dispatch failed")
		emailSent = false
	}

	resp := CreateResponse{
		ID:        invite.ID,
		Email:     invite.Email,
		Role:      invite.Role,
		ExpiresAt: invite.ExpiresAt,
		Token:     token,
		AcceptURL: acceptURL,
	}

	apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
		"invite":     resp,
		"email_sent": emailSent,
	})
}

func dispatchInviteEmail(ctx context.Context, pool *pgxpool.Pool, sender mailer.Sender, invite *Invite, acceptURL string) error {
	org, err := orgs.NewService(pool).GetByID(ctx, invite.OrgID)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("You've been invited to join %s", org.Name)
	body := fmt.Sprintf(
		"You have been invited to join %s as %s.\n\n"+
			"Accept the invitation here: %s\n\n"+
			"This invitation expires on %s.",
		org.Name,
		invite.Role,
		acceptURL,
		invite.ExpiresAt.Format(time.RFC1123),
	)

	return sender.Send(ctx, invite.Email, subject, body)
}

// HandleList handles GET /api/v1/orgs/{org_id}/invites
func HandleList(pool *pgxpool.Pool, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		service := NewService(pool, orgs.NewService(pool), cfg.InviteTTLDays)
		list, err := service.List(ctx, orgID, userID)
		if err != nil {
			if writeAuthzError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to list invites")
			apperrors.WriteInternalError(w, r, "Failed to list invites")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invites": list,
		})
	}
}

// HandleCancel handles DELETE /api/v1/invites/{invite_id}
func HandleCancel(pool *pgxpool.Pool, cfg *config.Config, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invite ID")
			return
		}

		service := NewService(pool, orgs.NewService(pool), cfg.InviteTTLDays)
		orgID, err := service.Cancel(ctx, inviteID, userID)
		if err != nil {
			if writeAuthzError(w, r, err) {
				return
			}
			if errors.Is(err, ErrInviteNotFound) {
				apperrors.WriteNotFound(w, r, "Invite not found")
				return
			}
			log.Error().Err(err).Msg("Failed to cancel invite")
			apperrors.WriteInternalError(w, r, "Failed to cancel invite")
			return
		}

		if err := auditor.LogInviteRevoked(ctx, orgID, userID, inviteID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"cancelled": true,
		})
	}
}

// HandleAccept handles POST /api/v1/invites/accept
func HandleAccept(pool *pgxpool.Pool, cfg *config.Config, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req AcceptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.Token == "" {
			apperrors.WriteBadRequest(w, r, "Token is required")
			return
		}

		service := NewService(pool, orgs.NewService(pool), cfg.InviteTTLDays)
		result, err := service.Accept(ctx, req.Token, userID)
		if err != nil {
			if errors.Is(err, ErrInviteNotFound) {
				apperrors.WriteNotFound(w, r, "Invalid invitation token")
				return
			}
			if errors.Is(err, ErrInviteExpired) {
				apperrors.WriteGone(w, r, "Invitation has expired")
				return
			}
			log.Error().Err(err).Msg("Failed to accept invite")
			apperrors.WriteInternalError(w, r, "Failed to accept invite")
			return
		}

		if err := auditor.LogInviteAccepted(ctx, result.Org.ID, userID, result.InviteID, string(result.Membership.Role)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		user, _ := auth.GetSessionUser(ctx)

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"organization": map[string]any{
				"id":   result.Org.ID,
				"name": result.Org.Name,
				"slug": result.Org.Slug,
			},
			"membership":     result.Membership,
			"user":           user,
			"already_member": result.AlreadyMember,
		})
	}
}

package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgbase/orgbase/internal/orgs"
	"github.com/orgbase/orgbase/internal/validation"
)

// Service provides invitation lifecycle operations
type Service struct {
	pool      *pgxpool.Pool
	orgs      *orgs.Service
	inviteTTL time.Duration
}

// NewService creates a new invitation service
func NewService(pool *pgxpool.Pool, orgService *orgs.Service, ttlDays int) *Service {
	return &Service{
		pool:      pool,
		orgs:      orgService,
		inviteTTL: time.Duration(ttlDays) * 24 * time.Hour,
	}
}

// Create issues a new invite. The acting user must be an ADMIN of the
// organization. Creation is rejected when the email already belongs to a
// member or a pending invite for it exists. Returns the invite and the
// plaintext token (the caller emails it; only the hash is stored).
func (s *Service) Create(ctx context.Context, orgID, actorUserID uuid.UUID, email string, role orgs.OrgRole) (*Invite, string, error) {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return nil, "", err
	}

	if !role.IsValid() {
		return nil, "", fmt.Errorf("invalid role")
	}

	if _, err := s.orgs.RequireAdmin(ctx, actorUserID, orgID); err != nil {
		return nil, "", err
	}

	var memberExists bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM org_memberships m
			INNER JOIN users u ON u.id = m.user_id
			WHERE m.org_id = $1 AND LOWER(u.email) = LOWER($2)
		)
	`, orgID, email).Scan(&memberExists)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing membership: %w", err)
	}
	if memberExists {
		return nil, "", ErrAlreadyMember
	}

	var invite Invite
	for attempt := 0; attempt < 3; attempt++ {
		token, tokenHash, err := GenerateToken()
		if err != nil {
			return nil, "", err
		}

		expiresAt := time.Now().UTC().Add(s.inviteTTL)

		err = s.pool.QueryRow(ctx, `
			INSERT INTO org_invites (
			  org_id, email, role, token_hash, created_by_user_id, expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, org_id, email, role, created_at, expires_at
		`, orgID, email, role, tokenHash, actorUserID, expiresAt).Scan(
			&invite.ID,
			&invite.OrgID,
			&invite.Email,
			&invite.Role,
			&invite.CreatedAt,
			&invite.ExpiresAt,
		)
		if err == nil {
			return &invite, token, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "org_invites_org_email_unique" {
				return nil, "", ErrDuplicateInvite
			}
			// Token hash collision (extremely unlikely); retry.
			continue
		}
		return nil, "", fmt.Errorf("failed to create invite: %w", err)
	}

	return nil, "", fmt.Errorf("failed to create invite: token collision retry exhausted")
}

// List returns the pending invites of an organization.
// Only ADMINs may list invites.
func (s *Service) List(ctx context.Context, orgID, actorUserID uuid.UUID) ([]ListItem, error) {
	if _, err := s.orgs.RequireAdmin(ctx, actorUserID, orgID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
		  i.id,
		  i.email,
		  i.role,
		  i.created_at,
		  i.expires_at,
		  u.email AS created_by_email
		FROM org_invites i
		INNER JOIN users u ON u.id = i.created_by_user_id
		WHERE i.org_id = $1
		  AND i.expires_at > NOW()
		ORDER BY i.created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var list []ListItem
	for rows.Next() {
		var inv ListItem
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.CreatedAt, &inv.ExpiresAt, &inv.CreatedByEmail); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		list = append(list, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invites: %w", err)
	}

	return list, nil
}

// Cancel deletes a pending invite. The acting user must be an ADMIN of
// the organization the invite belongs to.
func (s *Service) Cancel(ctx context.Context, inviteID, actorUserID uuid.UUID) (orgID uuid.UUID, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT org_id FROM org_invites WHERE id = $1
	`, inviteID).Scan(&orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrInviteNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to load invite: %w", err)
	}

	if _, err := s.orgs.RequireAdmin(ctx, actorUserID, orgID); err != nil {
		return uuid.Nil, err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM org_invites WHERE id = $1`, inviteID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to cancel invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, ErrInviteNotFound
	}

	return orgID, nil
}

// Accept redeems an invite token for the authenticated user.
// The membership insert and the invite delete happen in one transaction,
// with the invite row locked, so concurrent accepts of the same token
// cannot create two memberships. When the user is already a member the
// call is idempotent: the stale invite is deleted and the existing
// membership is returned.
func (s *Service) Accept(ctx context.Context, token string, userID uuid.UUID) (*AcceptResult, error) {
	if !ValidateTokenFormat(token) {
		return nil, ErrInviteNotFound
	}
	tokenHash := HashToken(token)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var invite Invite
	err = tx.QueryRow(ctx, `
		SELECT id, org_id, email, role, created_at, expires_at
		FROM org_invites
		WHERE token_hash = $1
		FOR UPDATE
	`, tokenHash).Scan(
		&invite.ID,
		&invite.OrgID,
		&invite.Email,
		&invite.Role,
		&invite.CreatedAt,
		&invite.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	if !invite.ExpiresAt.After(time.Now().UTC()) {
		return nil, ErrInviteExpired
	}

	result := &AcceptResult{InviteID: invite.ID}

	var membership orgs.Membership
	err = tx.QueryRow(ctx, `
		SELECT id, org_id, user_id, role, created_at
		FROM org_memberships
		WHERE org_id = $1 AND user_id = $2
	`, invite.OrgID, userID).Scan(
		&membership.ID,
		&membership.OrgID,
		&membership.UserID,
		&membership.Role,
		&membership.CreatedAt,
	)
	switch {
	case err == nil:
		// Already a member: consume the stale invite and succeed.
		result.AlreadyMember = true
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO org_memberships (org_id, user_id, role)
			VALUES ($1, $2, $3)
			RETURNING id, org_id, user_id, role, created_at
		`, invite.OrgID, userID, invite.Role).Scan(
			&membership.ID,
			&membership.OrgID,
			&membership.UserID,
			&membership.Role,
			&membership.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create membership: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM org_invites WHERE id = $1`, invite.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInviteNotFound
	}

	err = tx.QueryRow(ctx, `
		SELECT id, name, slug, owner_user_id, created_at, updated_at
		FROM orgs
		WHERE id = $1
	`, invite.OrgID).Scan(
		&result.Org.ID,
		&result.Org.Name,
		&result.Org.Slug,
		&result.Org.OwnerUserID,
		&result.Org.CreatedAt,
		&result.Org.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	result.Membership = membership
	return result, nil
}

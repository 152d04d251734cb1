package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotMember is returned when a user is not a member of an organization
	ErrNotMember = errors.New("user is not a member of this organization")

	// ErrInsufficientRole is returned when a user's role is below the required role
	ErrInsufficientRole = errors.New("insufficient role")
)

// Grant is the result of a successful authorization check.
type Grant struct {
	Role    OrgRole
	IsOwner bool
}

// Authorize is the single authorization guard applied before every
// org-scoped operation. It loads the caller's membership for the target
// organization and verifies the role requirement in one query.
// Returns ErrNotMember when the caller holds no membership and
// ErrInsufficientRole when the membership role is below requiredRole.
func (s *Service) Authorize(ctx context.Context, userID, orgID uuid.UUID, requiredRole OrgRole) (Grant, error) {
	var grant Grant

	query := `
		SELECT m.role, o.owner_user_id = m.user_id
		FROM org_memberships m
		INNER JOIN orgs o ON o.id = m.org_id
		WHERE m.org_id = $1 AND m.user_id = $2
	`

	err := s.pool.QueryRow(ctx, query, orgID, userID).Scan(&grant.Role, &grant.IsOwner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug().
				Str("user_id", userID.String()).
				Str("org_id", orgID.String()).
				Msg("Authorization: user is not a member of organization")
			return Grant{}, ErrNotMember
		}
		return Grant{}, fmt.Errorf("failed to check org membership: %w", err)
	}

	if !grant.Role.Satisfies(requiredRole) {
		log.Warn().
			Str("user_id", userID.String()).
			Str("org_id", orgID.String()).
			Str("user_role", string(grant.Role)).
			Str("required_role", string(requiredRole)).
			Msg("Authorization: insufficient role")
		return grant, ErrInsufficientRole
	}

	return grant, nil
}

// RequireMember checks that a user is a member of an organization
func (s *Service) RequireMember(ctx context.Context, userID, orgID uuid.UUID) (Grant, error) {
	return s.Authorize(ctx, userID, orgID, RoleMember)
}

// RequireAdmin checks that a user holds the ADMIN role in an organization
func (s *Service) RequireAdmin(ctx context.Context, userID, orgID uuid.UUID) (Grant, error) {
	return s.Authorize(ctx, userID, orgID, RoleAdmin)
}

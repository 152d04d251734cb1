package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrCannotRemoveSelf  = errors.New("cannot remove yourself from the organization")
	ErrCannotRemoveOwner = errors.New("cannot remove the organization owner")
)

// RemoveMember deletes a membership by its ID.
// The acting user must be an ADMIN of the organization; the target must
// belong to the same organization, must not be the acting user, and must
// not be the organization owner.
func (s *Service) RemoveMember(ctx context.Context, orgID, actorUserID, membershipID uuid.UUID) (removed MemberInfo, err error) {
	if _, err := s.RequireAdmin(ctx, actorUserID, orgID); err != nil {
		return MemberInfo{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return MemberInfo{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var target MemberInfo
	err = tx.QueryRow(ctx, `
		SELECT m.id, m.user_id, u.email, u.display_name, u.avatar_url, m.role,
		       o.owner_user_id = m.user_id, m.created_at
		FROM org_memberships m
		INNER JOIN users u ON u.id = m.user_id
		INNER JOIN orgs o ON o.id = m.org_id
		WHERE m.id = $1 AND m.org_id = $2
		FOR UPDATE OF m
	`, membershipID, orgID).Scan(
		&target.MembershipID,
		&target.UserID,
		&target.Email,
		&target.DisplayName,
		&target.AvatarURL,
		&target.Role,
		&target.IsOwner,
		&target.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MemberInfo{}, ErrMemberNotFound
		}
		return MemberInfo{}, fmt.Errorf("failed to load member: %w", err)
	}

	if target.UserID == actorUserID {
		return MemberInfo{}, ErrCannotRemoveSelf
	}
	if target.IsOwner {
		return MemberInfo{}, ErrCannotRemoveOwner
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM org_memberships
		WHERE id = $1 AND org_id = $2
	`, membershipID, orgID)
	if err != nil {
		return MemberInfo{}, fmt.Errorf("failed to remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return MemberInfo{}, ErrMemberNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return MemberInfo{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return target, nil
}

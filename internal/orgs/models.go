package orgs

import (
	"time"

	"github.com/google/uuid"
)

// OrgRole represents a user's role within an organization
type OrgRole string

const (
	RoleAdmin  OrgRole = "ADMIN"
	RoleMember OrgRole = "MEMBER"
)

// IsValid returns true for a recognized role
func (r OrgRole) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Satisfies reports whether the role meets the required role.
// ADMIN satisfies everything; MEMBER satisfies MEMBER.
func (r OrgRole) Satisfies(required OrgRole) bool {
	return roleLevel(r) >= roleLevel(required)
}

func roleLevel(r OrgRole) int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Org represents an organization in the system.
// The owner is the user who created the organization; the owner reference
// never changes and the owner always holds an ADMIN membership.
type Org struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	OwnerUserID uuid.UUID `db:"owner_user_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Membership represents a user's membership in an organization
type Membership struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrgID     uuid.UUID `db:"org_id" json:"org_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Role      OrgRole   `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OrgWithRole combines org information with the user's role
type OrgWithRole struct {
	Org
	Role OrgRole `db:"role"`
}

// MemberInfo represents a member of an organization with their details
type MemberInfo struct {
	MembershipID uuid.UUID `db:"id" json:"membership_id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	Email        string    `db:"email" json:"email"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	AvatarURL    string    `db:"avatar_url" json:"avatar_url"`
	Role         OrgRole   `db:"role" json:"role"`
	IsOwner      bool      `json:"is_owner"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

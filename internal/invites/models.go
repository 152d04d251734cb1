package invites

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/orgbase/orgbase/internal/orgs"
)

var (
	ErrInviteNotFound  = errors.New("invite not found")
	ErrInviteExpired   = errors.New("invite expired")
	ErrDuplicateInvite = errors.New("a pending invite already exists for this email")
	ErrAlreadyMember   = errors.New("this email already belongs to a member")
)

// Invite is a pending offer for an email address to join an organization.
// The row is deleted when the invite is accepted or cancelled; an invite
// past its expiry is invalid even while the row still exists.
type Invite struct {
	ID        uuid.UUID    `db:"id"`
	OrgID     uuid.UUID    `db:"org_id"`
	Email     string       `db:"email"`
	Role      orgs.OrgRole `db:"role"`
	CreatedAt time.Time    `db:"created_at"`
	ExpiresAt time.Time    `db:"expires_at"`
}

// ListItem is an invite as shown to organization admins.
type ListItem struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	Email          string       `db:"email" json:"email"`
	Role           orgs.OrgRole `db:"role" json:"role"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time    `db:"expires_at" json:"expires_at"`
	CreatedByEmail string       `db:"created_by_email" json:"created_by_email"`
}

// AcceptResult is the outcome of a successful invite acceptance.
type AcceptResult struct {
	InviteID      uuid.UUID
	Org           orgs.Org
	Membership    orgs.Membership
	AlreadyMember bool
}

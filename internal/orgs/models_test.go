package orgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrgRole_IsValid(t *testing.T) {
	require.True(t, RoleAdmin.IsValid())
	require.True(t, RoleMember.IsValid())
	require.False(t, OrgRole("OWNER").IsValid())
	require.False(t, OrgRole("").IsValid())
}

func TestOrgRole_Satisfies(t *testing.T) {
	require.True(t, RoleAdmin.Satisfies(RoleAdmin))
	require.True(t, RoleAdmin.Satisfies(RoleMember))
	require.True(t, RoleMember.Satisfies(RoleMember))
	require.False(t, RoleMember.Satisfies(RoleAdmin))
	require.False(t, OrgRole("").Satisfies(RoleMember))
}

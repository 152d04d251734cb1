package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegration_MigrationsApplyToFreshPostgres(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	var count int
	err := pool.QueryRow(context.Background(), `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name IN ('users', 'orgs', 'org_memberships', 'org_invites', 'audit_log')
	`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

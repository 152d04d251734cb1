package invites

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DeleteExpired removes invite rows past their expiry.
// Expiry is also enforced lazily at accept time, so the sweep only keeps
// the table from accumulating dead rows. Idempotent.
//
// Returns the number of rows deleted.
func DeleteExpired(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM org_invites
		WHERE expires_at <= NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}

	return tag.RowsAffected(), nil
}

// RunReaperJob sweeps expired invites and logs the result.
// This is the entry point called by the cron scheduler.
func RunReaperJob(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Starting invite reaper job")

	startTime := time.Now()

	deleted, err := DeleteExpired(ctx, pool)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete expired invites")
		return fmt.Errorf("invite reaper failed: %w", err)
	}

	log.Info().
		Int64("invites_deleted", deleted).
		Dur("duration", time.Since(startTime)).
		Msg("Invite reaper job completed")

	return nil
}

package quota

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/goarticle/internal/metrics"
)

// MigrationSummary counts what MigrateAll did.
type MigrationSummary struct {
	Scanned  int
	Migrated int
	Failed   int
}

// MigrateAll reconciles every account in s and writes back only those whose
// limit changed. Per-account failures are counted and logged; only listing
// errors and cancellation abort the run.
func MigrateAll(ctx context.Context, s ListingStore, concurrency int) (MigrationSummary, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return MigrationSummary{}, fmt.Errorf("list accounts: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	var scanned, migrated, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			acct, err := s.FindByID(gctx, id)
			if err != nil {
				failed.Add(1)
				log.Warn().Err(err).Str("account", id).Msg("migration read failed")
				return nil
			}
			if acct == nil {
				return nil
			}
			scanned.Add(1)
			rec, changed := Reconcile(*acct)
			if !changed {
				return nil
			}
			if err := s.Update(gctx, id, ReconcilePatch(*acct, rec)); err != nil {
				failed.Add(1)
				log.Warn().Err(err).Str("account", id).Msg("migration write failed")
				return nil
			}
			migrated.Add(1)
			metrics.QuotaMigrationsTotal.Inc()
			log.Debug().Str("account", id).Uint64("limit", rec.TokenLimit).Msg("account migrated")
			return nil
		})
	}
	err = g.Wait()
	sum := MigrationSummary{Scanned: int(scanned.Load()), Migrated: int(migrated.Load()), Failed: int(failed.Load())}
	if err != nil {
		return sum, fmt.Errorf("migrate accounts: %w", err)
	}
	log.Info().Int("scanned", sum.Scanned).Int("migrated", sum.Migrated).Int("failed", sum.Failed).Msg("token limit migration finished")
	return sum, nil
}

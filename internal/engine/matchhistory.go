package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/nysm-labs/tft-curator/internal/checkpoint"
	"github.com/nysm-labs/tft-curator/internal/errcount"
	"github.com/nysm-labs/tft-curator/internal/model"
)

// fetchMatchHistories implements FETCH_MATCH_HISTORIES: for
// every player, fetch the player's most recent MatchHistoryCount match ids
// and push each id through Registry.Claim. The history request carries no
// time bounds; windowStart/windowEnd are not applied here, and matches
// outside the window are excluded later by FETCH_MATCH_DETAILS. Matches
// already COMPLETE are excluded from the returned set so
// FETCH_MATCH_DETAILS never re-fetches them.
func (e *Engine) fetchMatchHistories(ctx context.Context, cycleID string, players []model.Player, windowStart, windowEnd time.Time, snap *checkpoint.Snapshot, errs *errcount.Accumulator, log *slog.Logger) ([]string, error) {
	processed := make(map[string]bool, len(snap.ProcessedPlayers))
	for _, p := range snap.ProcessedPlayers {
		processed[p] = true
	}

	claimed := make([]string, 0, len(snap.PendingMatchQueue))
	claimed = append(claimed, snap.PendingMatchQueue...)

	for _, p := range players {
		if processed[p.PUUID] {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ids, err := e.riot.MatchIDsByPUUID(ctx, p.PUUID, e.cfg.MatchHistoryCount)
		if err != nil {
			if authErr := asAuthExpired(err, cycleID); authErr != nil {
				return nil, authErr
			}
			category := "TRANSPORT"
			if c, ok := asRiotCategory(err); ok {
				category = string(c)
			}
			errs.Record(category, "", p.PUUID)
			continue
		}

		for _, matchID := range ids {
			status, didClaim, err := e.registry.Claim(ctx, matchID, cycleID, e.clock.Now())
			if err != nil {
				return nil, err
			}
			if !didClaim && status == model.StatusComplete {
				continue
			}
			if !didClaim && status == model.StatusFailed {
				// a FAILED match is rescheduled, not
				// skipped, the same as an UNSEEN one.
				if err := e.registry.Reclaim(ctx, matchID, cycleID, e.clock.Now()); err != nil {
					return nil, err
				}
			}
			claimed = append(claimed, matchID)
		}

		processed[p.PUUID] = true
	}

	snap.ProcessedPlayers = keys(processed)
	snap.PendingMatchQueue = claimed

	log.Debug("match histories fetched", "claimed_count", len(claimed))
	return dedupe(claimed), nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

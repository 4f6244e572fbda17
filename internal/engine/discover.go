package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nysm-labs/tft-curator/internal/checkpoint"
	"github.com/nysm-labs/tft-curator/internal/model"
	"github.com/nysm-labs/tft-curator/internal/riot"
)

// maxLeagueEntriesPages bounds pagination per bucket; Riot's league-entries
// endpoint returns progressively smaller pages until empty.
const maxLeagueEntriesPages = 50

// leaderboardTopN caps how many of a bucket's top-LP entries are captured
// into the artifact's Leaderboards snapshot. Riot's league-entries pages
// arrive already ordered by LP descending, so the first entries of the
// first page are the bucket's leaderboard.
const leaderboardTopN = 10

// discoverPlayers implements DISCOVER_PLAYERS: walk the
// ranked matrix from the checkpoint's cursor bucket forward, recording
// every discovered player into the Registry and returning the full set
// for this cycle, along with a leaderboard snapshot per bucket.
func (e *Engine) discoverPlayers(ctx context.Context, cycleID string, snap *checkpoint.Snapshot, log *slog.Logger) ([]model.Player, map[string][]model.LeaderboardEntry, error) {
	matrix := model.RankedMatrix(e.cfg.Tiers)

	startIdx := 0
	if snap.CursorBucket.Tier != "" {
		for i, b := range matrix {
			if b == snap.CursorBucket {
				startIdx = i
				break
			}
		}
	}

	var players []model.Player
	leaderboards := make(map[string][]model.LeaderboardEntry)
	for i := startIdx; i < len(matrix); i++ {
		bucket := matrix[i]
		snap.CursorBucket = bucket

		var bucketEntries []model.LeaderboardEntry
		for page := 1; page <= maxLeagueEntriesPages; page++ {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			default:
			}

			pagePlayers, err := e.riot.LeagueEntries(ctx, bucket, page)
			if err != nil {
				if authErr := asAuthExpired(err, cycleID); authErr != nil {
					return nil, nil, authErr
				}
				return nil, nil, err
			}
			if len(pagePlayers) == 0 {
				break
			}

			for _, p := range pagePlayers {
				if err := e.registry.SeenPlayer(ctx, p, cycleID, e.clock.Now()); err != nil {
					return nil, nil, err
				}
				if len(bucketEntries) < leaderboardTopN {
					bucketEntries = append(bucketEntries, model.LeaderboardEntry{
						PUUID: p.PUUID,
						LeaguePoints: p.LeaguePoints,
						Rank: len(bucketEntries) + 1,
					})
				}
			}
			players = append(players, pagePlayers...)
		}
		if len(bucketEntries) > 0 {
			leaderboards[bucket.Key()] = bucketEntries
		}

		log.Debug("bucket discovered", "bucket", bucket.Key(), "total_players", len(players))
	}

	return players, leaderboards, nil
}

// asAuthExpired classifies a riot error into an ErrAuthExpired if its
// category is CategoryAuthExpired, otherwise returns nil so the caller
// falls back to propagating the original error.
func asAuthExpired(err error, cycleID string) *ErrAuthExpired {
	var apiErr *riot.APIError
	if errors.As(err, &apiErr) && apiErr.Category == riot.CategoryAuthExpired {
		return &ErrAuthExpired{CycleID: cycleID, Err: err}
	}
	return nil
}

// asRiotCategory extracts the riot.Category from err, if it wraps a
// *riot.APIError.
func asRiotCategory(err error) (riot.Category, bool) {
	var apiErr *riot.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category, true
	}
	return "", false
}

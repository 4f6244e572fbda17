package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nysm-labs/tft-curator/internal/checkpoint"
	"github.com/nysm-labs/tft-curator/internal/errcount"
	"github.com/nysm-labs/tft-curator/internal/model"
)

// fetchMatchDetails implements FETCH_MATCH_DETAILS: a bounded worker pool
// drains the claimed match-id queue, fetching each match's detail body,
// applying the time-window and incomplete-match policies, and recording
// the result into the in-memory artifact and the Registry.
func (e *Engine) fetchMatchDetails(
	ctx context.Context,
	cycleID string,
	matchIDs []string,
	windowStart, windowEnd time.Time,
	artifact *model.CollectionArtifact,
	snap *checkpoint.Snapshot,
	trigger *CheckpointTrigger,
	errs *errcount.Accumulator,
	log *slog.Logger,
) error {
	queue := newWorkQueue()
	for _, id := range matchIDs {
		queue.Enqueue(WorkItem{Kind: WorkMatch, MatchID: id})
	}
	queue.Close()

	var mu sync.Mutex
	var wg sync.WaitGroup
	errCh := make(chan error, e.cfg.WorkerCount)
	done := make(chan struct{})

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < e.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, ok := queue.TryDequeue()
				if !ok {
					if queue.IsClosed() {
						return
					}
					select {
					case <-workerCtx.Done():
						return
					case <-queue.Wait():
						continue
					}
				}

				select {
				case <-workerCtx.Done():
					return
				default:
				}

				if e.riot.Saturated() {
					log.Debug("rate budget near margin, fetch will block on the limiter", "match_id", item.MatchID)
				}

				if err := e.processOneMatch(workerCtx, cycleID, item.MatchID, windowStart, windowEnd, artifact, &mu, errs, log); err != nil {
					select {
					case errCh <- err:
						cancel()
					default:
					}
					return
				}

				mu.Lock()
				if trigger.Check() {
					snapCopy := *snap
					snapCopy.MatchesCollected += trigger.interval
					if saveErr := e.checkpoint.Save(&snapCopy); saveErr != nil {
						log.Warn("periodic checkpoint save failed", "error", saveErr)
					} else {
						*snap = snapCopy
					}
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case err := <-errCh:
		<-done
		return err
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// processOneMatch fetches, classifies, and records a single match id.
// Participant count below the configured full lobby size triggers the
// configured incomplete-match policy.
func (e *Engine) processOneMatch(
	ctx context.Context,
	cycleID, matchID string,
	windowStart, windowEnd time.Time,
	artifact *model.CollectionArtifact,
	mu *sync.Mutex,
	errs *errcount.Accumulator,
	log *slog.Logger,
) error {
	// A checkpoint resume replays the whole pending-match queue it saved
	// before the interruption, which may include ids already COMPLETE.
	// Two cases look identical in status but are not: a match completed
	// in an earlier, already-emitted cycle (cross-cycle dedup — its body
	// lives in that cycle's artifact on disk, safe to skip) versus a
	// match completed earlier in THIS SAME cycle's prior,
	// interrupted attempt (its body only ever lived in that attempt's
	// in-memory artifact, which died with the process, so it must be
	// re-fetched to appear in the artifact this resumed run emits).
	if status, err := e.registry.Status(ctx, matchID); err != nil {
		return err
	} else if status == model.StatusComplete {
		completedCycle, err := e.registry.CompletedCycle(ctx, matchID)
		if err != nil {
			return err
		}
		if completedCycle != cycleID {
			return nil
		}
	}

	m, err := e.riot.MatchByID(ctx, matchID)
	if err != nil {
		if authErr := asAuthExpired(err, cycleID); authErr != nil {
			return authErr
		}

		category := "TRANSPORT"
		if ae, ok := asRiotCategory(err); ok {
			category = string(ae)
		}
		errs.Record(category, matchID, "")
		if markErr := e.registry.Fail(ctx, matchID, category, e.clock.Now()); markErr != nil {
			log.Warn("registry fail write error", "match_id", matchID, "error", markErr)
		}
		return nil
	}

	gameTime := time.UnixMilli(m.Info.GameDateTime)
	if gameTime.Before(windowStart) || !gameTime.Before(windowEnd) {
		// Outside the collection window: the Registry still records the
		// id as complete (matches outside the window may still update
		// the Registry) but the artifact excludes the body.
		return e.registry.Complete(ctx, matchID, cycleID, e.clock.Now())
	}

	if m.ParticipantCount() < e.cfg.ExpectedParticipants {
		// Short-participant matches are INCOMPLETE in the registry no
		// matter the policy and always named in collectionInfo's
		// incomplete list; the policy only decides what the artifact
		// carries.
		switch e.cfg.IncompleteMatchPolicy {
		case model.PolicyFilter:
			mu.Lock()
			artifact.Info.IncompleteMatchIDs = append(artifact.Info.IncompleteMatchIDs, matchID)
			mu.Unlock()
			return e.registry.MarkIncomplete(ctx, matchID, cycleID, e.clock.Now())
		case model.PolicyIdentify:
			m.Incomplete = false
			log.Info("incomplete match identified", "match_id", matchID, "participant_count", m.ParticipantCount())
		default: // mark
			m.Incomplete = true
		}

		mu.Lock()
		artifact.Matches[m.MatchID] = m
		artifact.Info.IncompleteMatchIDs = append(artifact.Info.IncompleteMatchIDs, matchID)
		mu.Unlock()

		return e.registry.MarkIncomplete(ctx, matchID, cycleID, e.clock.Now())
	}

	m.Incomplete = false
	mu.Lock()
	artifact.Matches[m.MatchID] = m
	mu.Unlock()

	return e.registry.Complete(ctx, matchID, cycleID, e.clock.Now())
}

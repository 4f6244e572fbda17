package harness

import (
	"time"

	"github.com/nysm-labs/tft-curator/internal/model"
)

// singleParticipantMatch builds a minimal match whose one participant is
// puuid, placed first. Keeping the fixture to one tracked participant
// (rather than a full eight-player lobby of mostly-untracked puuids) keeps
// every scenario below self-contained: the "every participant puuid
// appears in players" invariant only has to hold over puuids this harness
// actually discovers through league entries, with no need to fabricate
// seven anonymous lobby-mates per match.
func singleParticipantMatch(matchID, puuid string, gameTime time.Time, placement int) model.Match {
	return model.Match{
		MatchID: matchID,
		Info: model.MatchInfo{
			GameDateTime: gameTime.UnixMilli(),
			GameLengthMillis: 1_700_000,
			GameVersion: "14.1",
			Participants: []model.Participant{
				{PUUID: puuid, Placement: placement, Level: 8},
			},
		},
	}
}

// matchWithParticipants builds a match carrying exactly the given
// participants, for scenarios that exercise placement/participant-count
// invariants directly.
func matchWithParticipants(matchID string, gameTime time.Time, participants ...model.Participant) model.Match {
	return model.Match{
		MatchID: matchID,
		Info: model.MatchInfo{
			GameDateTime: gameTime.UnixMilli(),
			GameLengthMillis: 1_700_000,
			GameVersion: "14.1",
			Participants: participants,
		},
	}
}

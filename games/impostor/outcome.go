/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

// Outcome describes how a round ended.
type Outcome struct {
	Decided        bool   // false when nobody voted
	MostVotedID    string // plurality-voted player
	CaughtImpostor bool
	WinnerID       string // the impostor when they escaped, empty otherwise
}

// ComputeRoundOutcome picks the plurality-voted player and decides the round.
//
// Candidates are scanned in the order they first received a vote, and only
// a strictly greater count replaces the current leader, so on a tie the
// earliest candidate to reach the maximum wins.
func ComputeRoundOutcome(order []string, votes map[string]VoteEntry, impostorID string) Outcome {
	var (
		mostVoted string
		maxVotes  int
	)

	for _, id := range order {
		if n := votes[id].Count; n > maxVotes {
			mostVoted = id
			maxVotes = n
		}
	}

	if mostVoted == "" {
		return Outcome{}
	}

	if mostVoted == impostorID {
		return Outcome{Decided: true, MostVotedID: mostVoted, CaughtImpostor: true}
	}

	return Outcome{Decided: true, MostVotedID: mostVoted, WinnerID: impostorID}
}

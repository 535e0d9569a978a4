/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package impostor holds the state machine for the impostor word game.
//
// A single Store owns the whole session: the roster in join order, the
// current stage, the round's secret word and impostor, the ready set and
// the vote tally. Every mutating operation runs under one mutex and
// returns the Snapshot captured before the lock is released, so callers
// can publish it to observers without touching the store again.
//
// Rounds cycle through four stages:
//
//	waiting -> asking -> voting -> results -> waiting
//
// Scores persist across rounds; roles, votes and highlights are reset
// at the end of every round.
package impostor

// Stage is the current step of the round.
type Stage string

const (
	StageWaiting Stage = "waiting"
	StageAsking  Stage = "asking"
	StageVoting  Stage = "voting"
	StageResults Stage = "results"
)

func (s Stage) String() string {
	return string(s)
}

// Highlight is a presentation hint for a player card.
type Highlight string

const (
	HighlightNone   Highlight = "none"
	HighlightReady  Highlight = "ready"
	HighlightCaught Highlight = "caught"
	HighlightWinner Highlight = "winner"
)

const (
	// ImpostorRole is the secret role handed to the impostor instead of the word.
	ImpostorRole = "Impostor"

	// MinPlayers is the smallest roster that can start a round.
	MinPlayers = 3

	// RoundPoints is awarded to each winner of a round.
	RoundPoints = 100
)

// Player is a member of the roster.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photoUrl"`
	Score     int       `json:"score"`
	Highlight Highlight `json:"highlight"`
	Word      string    `json:"word,omitempty"` // secret role; empty outside a round
}

// VoteEntry is the tally for one candidate.
type VoteEntry struct {
	Count  int      `json:"count"`
	Voters []string `json:"voters"` // voter names, in the order they voted
}

// Snapshot is a self-contained copy of the session state.
type Snapshot struct {
	Version              uint64               `json:"version"`
	Players              []Player             `json:"players"`
	CurrentWord          string               `json:"currentWord,omitempty"`
	ImpostorID           string               `json:"impostorId,omitempty"`
	Stage                Stage                `json:"stage"`
	CurrentQuestioner    *Player              `json:"currentQuestioner,omitempty"`
	ReadyPlayers         []string             `json:"readyPlayers"`
	Votes                map[string]VoteEntry `json:"votes"`
	VoteOrder            []string             `json:"voteOrder"`
	CurrentQuestionIndex int                  `json:"currentQuestionIndex"`
}

// Advance is the result of AdvanceStage.
type Advance struct {
	Stage             Stage   `json:"stage"`
	CurrentQuestioner *Player `json:"currentQuestioner"`
}

// Ballot is the result of a successful CastVote.
type Ballot struct {
	Voter       Player `json:"voter"`
	VotedPlayer Player `json:"votedPlayer"`
}

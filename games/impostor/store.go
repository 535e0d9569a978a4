/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Words  []string        // vocabulary; DefaultWords when empty
	Intn   func(n int) int // uniform pick in [0, n); math/rand/v2 when nil
	NewID  func() string   // player id source; uuid when nil
	Logger *zap.Logger
}

// Store owns the session. All methods are safe for concurrent use and each
// one runs with exclusive access to the whole session.
type Store struct {
	mu sync.Mutex

	words  []string
	intn   func(int) int
	newID  func() string
	logger *zap.Logger

	version    uint64
	players    []Player // join order, which is also turn order
	stage      Stage
	word       string
	impostorID string
	ready      map[string]bool
	readyOrder []string
	questioner int
	votes      map[string]*VoteEntry
	voteOrder  []string // candidates in the order they first received a vote
	voted      map[string]bool
}

// New returns a store in the waiting stage with an empty roster.
func New(opts Options) (*Store, error) {
	words := opts.Words
	if len(words) == 0 {
		words = DefaultWords
	}
	if err := ValidateWords(words); err != nil {
		return nil, fmt.Errorf("invalid vocabulary: %w", err)
	}

	s := &Store{
		words:  slices.Clone(words),
		intn:   opts.Intn,
		newID:  opts.NewID,
		logger: opts.Logger,
		stage:  StageWaiting,
		ready:  make(map[string]bool),
		votes:  make(map[string]*VoteEntry),
		voted:  make(map[string]bool),
	}
	if s.intn == nil {
		s.intn = rand.Intn
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	return s, nil
}

// RegisterPlayer appends a new player to the roster. Names are kept and
// compared exactly as given; a blank name is rejected.
func (s *Store) RegisterPlayer(name, photoRef string) (Player, Snapshot, error) {
	if strings.TrimSpace(name) == "" {
		return Player{}, Snapshot{}, ErrMissingFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.players {
		if p.Name == name {
			return Player{}, Snapshot{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}

	p := Player{
		ID:        s.newID(),
		Name:      name,
		PhotoURL:  photoRef,
		Highlight: HighlightNone,
	}
	s.players = append(s.players, p)

	return p, s.commitLocked(), nil
}

// MarkReady flags a player as ready. Once every player of a large enough
// roster is ready, the round starts as part of the same call.
func (s *Store) MarkReady(playerID string) (Snapshot, error) {
	if playerID == "" {
		return Snapshot{}, ErrMissingFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(playerID)
	if i < 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if s.stage != StageWaiting {
		return Snapshot{}, fmt.Errorf("%w: cannot ready up while %s", ErrInvalidState, s.stage)
	}

	readyCount := len(s.ready)
	if !s.ready[playerID] {
		readyCount++
	}

	start := readyCount == len(s.players) && len(s.players) >= MinPlayers

	var word, impostorID string
	if start {
		w, p := s.intn(len(s.words)), s.intn(len(s.players))
		if w < 0 || w >= len(s.words) || p < 0 || p >= len(s.players) {
			s.logger.Error("random pick out of range",
				zap.Int("word", w),
				zap.Int("player", p),
			)
			return Snapshot{}, ErrInternal
		}
		word, impostorID = s.words[w], s.players[p].ID
	}

	if !s.ready[playerID] {
		s.ready[playerID] = true
		s.readyOrder = append(s.readyOrder, playerID)
	}
	s.players[i].Highlight = HighlightReady

	if start {
		s.startRoundLocked(word, impostorID)
	}

	return s.commitLocked(), nil
}

func (s *Store) startRoundLocked(word, impostorID string) {
	s.word = word
	s.impostorID = impostorID

	for i := range s.players {
		if s.players[i].ID == impostorID {
			s.players[i].Word = ImpostorRole
		} else {
			s.players[i].Word = word
		}
		s.players[i].Highlight = HighlightNone
	}

	s.stage = StageAsking
	s.questioner = 0
	clear(s.ready)
	s.readyOrder = nil
	clear(s.votes)
	s.voteOrder = nil
	clear(s.voted)

	s.logger.Info("round started",
		zap.Int("players", len(s.players)),
	)
}

// AdvanceStage moves the round forward by one step. It is valid in every
// stage; in waiting it changes nothing but still produces a snapshot.
func (s *Store) AdvanceStage() (Advance, Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stage {
	case StageAsking:
		if len(s.players) == 0 {
			s.logger.Error("asking stage with an empty roster")
			return Advance{}, Snapshot{}, ErrInternal
		}
		s.questioner = (s.questioner + 1) % len(s.players)
		if s.questioner == 0 {
			s.stage = StageVoting
		}
	case StageVoting:
		if err := s.checkImpostorLocked(); err != nil {
			return Advance{}, Snapshot{}, err
		}
		s.concludeLocked()
	case StageResults:
		s.resetRoundLocked()
	}

	snap := s.commitLocked()

	return Advance{Stage: s.stage, CurrentQuestioner: s.questionerLocked()}, snap, nil
}

// CastVote records voterID's vote against votedPlayerID. The vote that
// completes coverage of the roster ends voting immediately.
func (s *Store) CastVote(voterID, votedPlayerID string) (Ballot, Snapshot, error) {
	if voterID == "" || votedPlayerID == "" {
		return Ballot{}, Snapshot{}, ErrMissingFields
	}
	if voterID == votedPlayerID {
		return Ballot{}, Snapshot{}, ErrSelfVote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voted[voterID] {
		return Ballot{}, Snapshot{}, ErrAlreadyVoted
	}

	vi, ti := s.indexLocked(voterID), s.indexLocked(votedPlayerID)
	if vi < 0 || ti < 0 {
		return Ballot{}, Snapshot{}, ErrUnknownPlayer
	}
	if s.stage != StageVoting {
		return Ballot{}, Snapshot{}, fmt.Errorf("%w: cannot vote while %s", ErrInvalidState, s.stage)
	}

	final := len(s.voted)+1 == len(s.players)
	if final {
		if err := s.checkImpostorLocked(); err != nil {
			return Ballot{}, Snapshot{}, err
		}
	}

	ballot := Ballot{Voter: s.players[vi], VotedPlayer: s.players[ti]}

	s.voted[voterID] = true
	entry, ok := s.votes[votedPlayerID]
	if !ok {
		entry = &VoteEntry{}
		s.votes[votedPlayerID] = entry
		s.voteOrder = append(s.voteOrder, votedPlayerID)
	}
	entry.Count++
	entry.Voters = append(entry.Voters, s.players[vi].Name)

	if final {
		s.concludeLocked()
	}

	return ballot, s.commitLocked(), nil
}

// PlayerByName looks up an active player by exact name.
func (s *Store) PlayerByName(name string) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.players {
		if p.Name == name {
			return p, nil
		}
	}

	return Player{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Snapshot returns the current state without changing it.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Store) checkImpostorLocked() error {
	if s.indexLocked(s.impostorID) < 0 {
		s.logger.Error("impostor is not on the roster",
			zap.String("impostor", s.impostorID),
			zap.Stringer("stage", s.stage),
		)
		return ErrInternal
	}

	return nil
}

// concludeLocked ends voting and applies the round outcome.
// checkImpostorLocked must have passed.
func (s *Store) concludeLocked() {
	votes := make(map[string]VoteEntry, len(s.votes))
	for id, e := range s.votes {
		votes[id] = *e
	}
	outcome := ComputeRoundOutcome(s.voteOrder, votes, s.impostorID)

	s.stage = StageResults
	clear(s.voted)

	for i := range s.players {
		s.players[i].Highlight = HighlightNone
	}

	if !outcome.Decided {
		s.logger.Info("round ended without votes")
		return
	}

	for i := range s.players {
		p := &s.players[i]
		switch {
		case p.ID == s.impostorID && outcome.CaughtImpostor:
			p.Highlight = HighlightCaught
		case p.ID == s.impostorID:
			p.Score += RoundPoints
			p.Highlight = HighlightWinner
		case outcome.CaughtImpostor:
			p.Score += RoundPoints
		}
	}

	s.logger.Info("round ended",
		zap.String("mostVoted", outcome.MostVotedID),
		zap.Bool("caught", outcome.CaughtImpostor),
	)
}

func (s *Store) resetRoundLocked() {
	s.stage = StageWaiting
	s.word = ""
	s.impostorID = ""
	s.questioner = 0
	clear(s.votes)
	s.voteOrder = nil
	clear(s.voted)

	for i := range s.players {
		s.players[i].Word = ""
		if s.ready[s.players[i].ID] {
			s.players[i].Highlight = HighlightReady
		} else {
			s.players[i].Highlight = HighlightNone
		}
	}
}

func (s *Store) commitLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.players, func(p Player) bool { return p.ID == id })
}

func (s *Store) questionerLocked() *Player {
	if s.questioner < 0 || s.questioner >= len(s.players) {
		return nil
	}
	p := s.players[s.questioner]
	return &p
}

func (s *Store) snapshotLocked() Snapshot {
	votes := make(map[string]VoteEntry, len(s.votes))
	for id, e := range s.votes {
		votes[id] = VoteEntry{Count: e.Count, Voters: slices.Clone(e.Voters)}
	}

	ready := make([]string, len(s.readyOrder))
	copy(ready, s.readyOrder)

	order := make([]string, len(s.voteOrder))
	copy(order, s.voteOrder)

	players := make([]Player, len(s.players))
	copy(players, s.players)

	return Snapshot{
		Version:              s.version,
		Players:              players,
		CurrentWord:          s.word,
		ImpostorID:           s.impostorID,
		Stage:                s.stage,
		CurrentQuestioner:    s.questionerLocked(),
		ReadyPlayers:         ready,
		Votes:                votes,
		VoteOrder:            order,
		CurrentQuestionIndex: s.questioner,
	}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"sync"

	"github.com/Seednode/impostor/games/impostor"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Messages coming from clients
type ClientMessage struct {
	Type          string `json:"type"`                    // "register", "identify", "ready", "next_stage", "vote"
	Name          string `json:"name,omitempty"`          // register
	PhotoRef      string `json:"photoRef,omitempty"`      // register
	PlayerID      string `json:"playerId,omitempty"`      // identify / ready
	VoterID       string `json:"voterId,omitempty"`       // vote
	VotedPlayerID string `json:"votedPlayerId,omitempty"` // vote
}

// StateMessage carries a full session snapshot.
type StateMessage struct {
	Type  string            `json:"type"` // "game-state-update"
	State impostor.Snapshot `json:"state"`
}

// RegisteredMessage is sent only to the client that registered.
type RegisteredMessage struct {
	Type   string          `json:"type"` // "registered"
	Player impostor.Player `json:"player"`
}

// ErrorMessage is sent only to the client whose action failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    "error",
		Code:    impostor.ErrorCode(err),
		Message: err.Error(),
	}
}

// Client is one connected observer. playerID is guarded by the hub mutex.
type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	addr     string
}

// Hub fans session snapshots out to every connected client.
//
// Each mutation is committed to the store and queued to every client while
// h.mu is held, so all clients see snapshots in commit order. Queueing never
// blocks: a client whose buffer is full is dropped. The actual socket writes
// happen in each client's write pump.
type Hub struct {
	store       *impostor.Store
	logger      *zap.Logger
	revealRoles bool

	mu      sync.Mutex
	clients map[*Client]bool
}

func newHub(store *impostor.Store, cfg *Config) *Hub {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		store:       store,
		logger:      logger,
		revealRoles: cfg.revealRoles,
		clients:     make(map[*Client]bool),
	}
}

// subscribe adds c and sends it the current snapshot.
func (h *Hub) subscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true

	h.logger.Info("client connected",
		zap.String("addr", c.addr),
		zap.Int("clients", len(h.clients)),
	)

	h.deliverLocked(c, h.store.Snapshot())
}

func (h *Hub) unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dropLocked(c) {
		h.logger.Info("client disconnected",
			zap.String("addr", c.addr),
			zap.Int("clients", len(h.clients)),
		)
	}
}

// identify binds c to a roster player, so it receives that player's view.
func (h *Hub) identify(c *Client, playerID string) error {
	if playerID == "" {
		return impostor.ErrMissingFields
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	snap := h.store.Snapshot()
	if !onRoster(snap, playerID) {
		return fmt.Errorf("%w: %s", impostor.ErrUnknownPlayer, playerID)
	}

	c.playerID = playerID
	h.deliverLocked(c, snap)

	return nil
}

func (h *Hub) playerOf(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return c.playerID
}

// registerPlayer adds a player; when c is not nil it is bound to them.
func (h *Hub) registerPlayer(c *Client, name, photoRef string) (impostor.Player, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, snap, err := h.store.RegisterPlayer(name, photoRef)
	if err != nil {
		return impostor.Player{}, err
	}

	if c != nil {
		c.playerID = p.ID
	}

	h.logger.Info("player joined",
		zap.String("name", p.Name),
		zap.String("id", p.ID),
	)

	h.broadcastLocked(snap)

	return p, nil
}

func (h *Hub) markReady(playerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, err := h.store.MarkReady(playerID)
	if err != nil {
		return err
	}

	h.broadcastLocked(snap)

	return nil
}

func (h *Hub) advanceStage() (impostor.Advance, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	adv, snap, err := h.store.AdvanceStage()
	if err != nil {
		return impostor.Advance{}, err
	}

	h.broadcastLocked(snap)

	return adv, nil
}

func (h *Hub) castVote(voterID, votedPlayerID string) (impostor.Ballot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ballot, snap, err := h.store.CastVote(voterID, votedPlayerID)
	if err != nil {
		return impostor.Ballot{}, err
	}

	h.broadcastLocked(snap)

	return ballot, nil
}

// view returns the snapshot as the given player may see it.
func (h *Hub) view(snap impostor.Snapshot, playerID string) impostor.Snapshot {
	if h.revealRoles {
		return snap
	}

	return snap.ViewFor(playerID)
}

// redactPlayer hides p's secret role from viewerID until results.
func (h *Hub) redactPlayer(p impostor.Player, viewerID string, stage impostor.Stage) impostor.Player {
	if h.revealRoles || p.ID == viewerID || stage == impostor.StageResults {
		return p
	}

	p.Word = ""
	return p
}

// reply sends msg to c alone.
func (h *Hub) reply(c *Client, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sendLocked(c, msg)
}

func (h *Hub) broadcastLocked(snap impostor.Snapshot) {
	for c := range h.clients {
		h.deliverLocked(c, snap)
	}
}

func (h *Hub) deliverLocked(c *Client, snap impostor.Snapshot) {
	h.sendLocked(c, StateMessage{
		Type:  "game-state-update",
		State: h.view(snap, c.playerID),
	})
}

func (h *Hub) sendLocked(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.logger.Warn("dropping slow client",
			zap.String("addr", c.addr),
		)
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *Client) bool {
	if !h.clients[c] {
		return false
	}

	delete(h.clients, c)
	close(c.send)

	return true
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.dropLocked(c)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func onRoster(snap impostor.Snapshot, playerID string) bool {
	for _, p := range snap.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

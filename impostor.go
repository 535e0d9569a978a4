// Impostor word game transport
//
// Every player but one is told a secret word; the impostor is only told
// that they are the impostor. Players take turns asking each other
// questions, then vote on who they think the impostor is.
//
// Features:
// - One shared session, driven over a JSON API or a WebSocket
// - Every committed change is pushed to every connected client as a full snapshot
// - New WebSocket clients receive the current snapshot right away
// - Errors are reported only to the client that caused them
// - Clients only see their own secret role until results, unless --reveal-roles is set
// - Players identified by cookie (impostor_id) once registered
// - In-browser QR code to share the game, backed by go-qrcode

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/impostor/games/impostor"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	playerCookieName = "impostor_id"
	maxRequestBytes  = 64 << 10
	qrSize           = 320
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// apiRequest is the union of all inbound API fields.
type apiRequest struct {
	Name          string `json:"name"`
	PhotoRef      string `json:"photoRef"`
	PlayerID      string `json:"playerId"`
	VoterID       string `json:"voterId"`
	VotedPlayerID string `json:"votedPlayerId"`
}

var errBadRequest = errors.New("malformed request body")

func decodeRequest(w http.ResponseWriter, r *http.Request) (apiRequest, error) {
	var req apiRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errBadRequest
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, errBadRequest
	}

	req.Name = r.FormValue("name")
	req.PhotoRef = r.FormValue("photoRef")
	req.PlayerID = r.FormValue("playerId")
	req.VoterID = r.FormValue("voterId")
	req.VotedPlayerID = r.FormValue("votedPlayerId")

	return req, nil
}

func playerFromCookie(r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil {
		return c.Value
	}
	return ""
}

func setPlayerCookie(cfg *Config, w http.ResponseWriter, playerID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    playerID,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, impostor.ErrNotFound):
		return http.StatusNotFound
	case impostor.ErrorCode(err) == "Internal":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, r *http.Request, status int, v any, startTime time.Time) {
	data, err := json.Marshal(v)
	if err != nil {
		cfg.logger.Error("encoding response", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	written, err := w.Write(append(data, '\n'))
	if err != nil {
		return
	}

	cfg.logger.Info("SERVE",
		zap.String("route", r.URL.Path),
		zap.Int("status", status),
		zap.String("size", humanReadableSize(written)),
		zap.String("addr", realIP(r)),
		zap.Duration("took", time.Since(startTime).Round(time.Microsecond)),
	)
}

func writeError(cfg *Config, w http.ResponseWriter, r *http.Request, err error, startTime time.Time) {
	code := impostor.ErrorCode(err)
	if errors.Is(err, errBadRequest) {
		code = "BadRequest"
	}

	writeJSON(cfg, w, r, errorStatus(err), map[string]string{
		"error": err.Error(),
		"code":  code,
	}, startTime)
}

func serveRegister(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		req, err := decodeRequest(w, r)
		if err != nil {
			writeError(cfg, w, r, err, startTime)
			return
		}

		p, err := hub.registerPlayer(nil, req.Name, req.PhotoRef)
		if err != nil {
			writeError(cfg, w, r, err, startTime)
			return
		}

		setPlayerCookie(cfg, w, p.ID)

		writeJSON(cfg, w, r, http.StatusOK, map[string]any{
			"success": true,
			"player":  p,
		}, startTime)
	}
}

func serveReady(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		req, err := decodeRequest(w, r)
		if err != nil {
			writeError(cfg, w, r, err, startTime)
			return
		}

		playerID := req.PlayerID
		if playerID == "" {
			playerID = playerFromCookie(r)
		}

		if err := hub.markReady(playerID); err != nil {
			writeError(cfg, w, r, err, startTime)
			return
		}

		writeJSON(cfg, w, r, http.StatusOK, map[string]any{"success": true}, startTime)
	}
}

func serveNextStage(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		adv, err := hub.advanceStage()
		if err != nil {
			writeError(cfg, w, r, err, startTime)
			return
		}

		var questioner *impostor.Player
		if adv.CurrentQuestioner != nil {
			q := hub.redactPlayer(*adv.CurrentQuestioner, playerFromCookie(r), adv.Stage)
			questioner = &q
		}

		writeJSON(cfg, w, r, http.StatusOK, map[string]any{
			"success":           true,
			"stage":             adv.Stage,
			"currentQuestioner": questioner,
		}, startTime)
	}
}

func serveVote(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		req, err := decodeRequest(w, r)
		if err != nil {
			writeError(cfg, w, r, err, startTime)
			return
		}

		voterID := req.VoterID
		if voterID == "" {
			voterID = playerFromCookie(r)
		}

		ballot, err := hub.castVote(voterID, req.VotedPlayerID)
		if err != nil {
			writeError(cfg, w, r, err, startTime)
			return
		}

		stage := hub.store.Snapshot().Stage

		writeJSON(cfg, w, r, http.StatusOK, map[string]any{
			"success":     true,
			"voter":       hub.redactPlayer(ballot.Voter, voterID, stage),
			"votedPlayer": hub.redactPlayer(ballot.VotedPlayer, voterID, stage),
		}, startTime)
	}
}

func servePlayer(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		name := ps.ByName("name")
		if name == "" {
			writeError(cfg, w, r, impostor.ErrMissingFields, startTime)
			return
		}

		p, err := hub.store.PlayerByName(name)
		if err != nil {
			writeError(cfg, w, r, err, startTime)
			return
		}

		writeJSON(cfg, w, r, http.StatusOK, map[string]any{
			"success": true,
			"player":  hub.redactPlayer(p, playerFromCookie(r), hub.store.Snapshot().Stage),
		}, startTime)
	}
}

func serveGameState(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		snap := hub.view(hub.store.Snapshot(), playerFromCookie(r))

		writeJSON(cfg, w, r, http.StatusOK, snap, startTime)
	}
}

func serveWS(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.logger.Warn("websocket upgrade failed",
				zap.String("addr", realIP(r)),
				zap.Error(err),
			)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, cfg.sendBuffer),
			playerID: playerFromCookie(r),
			addr:     realIP(r),
		}

		hub.subscribe(client)

		go client.writePump(cfg.writeTimeout)
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unsubscribe(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxRequestBytes)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.handle(h, msg)
	}
}

func (c *Client) handle(h *Hub, msg ClientMessage) {
	var err error

	switch msg.Type {
	case "register":
		var p impostor.Player
		p, err = h.registerPlayer(c, msg.Name, msg.PhotoRef)
		if err == nil {
			h.reply(c, RegisteredMessage{Type: "registered", Player: p})
		}
	case "identify":
		err = h.identify(c, msg.PlayerID)
	case "ready":
		playerID := msg.PlayerID
		if playerID == "" {
			playerID = h.playerOf(c)
		}
		err = h.markReady(playerID)
	case "next_stage":
		_, err = h.advanceStage()
	case "vote":
		voterID := msg.VoterID
		if voterID == "" {
			voterID = h.playerOf(c)
		}
		_, err = h.castVote(voterID, msg.VotedPlayerID)
	default:
		h.reply(c, ErrorMessage{
			Type:    "error",
			Code:    "BadRequest",
			Message: "unknown message type " + msg.Type,
		})
		return
	}

	if err != nil {
		h.reply(c, errorMessage(err))
	}
}

func (c *Client) writePump(timeout time.Duration) {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// qrHandler generates a PNG QR code pointing at the game.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/"

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

// registerImpostorGame sets up routes so that:
//   - /api/...  → JSON API, one route per session operation
//   - /ws       → WebSocket for snapshots and actions
//   - /qr       → PNG QR code for the game URL
func registerImpostorGame(cfg *Config, mux *httprouter.Router, hub *Hub) {
	mux.POST(cfg.prefix+"/api/upload", serveRegister(cfg, hub))
	mux.POST(cfg.prefix+"/api/ready", serveReady(cfg, hub))
	mux.POST(cfg.prefix+"/api/next-stage", serveNextStage(cfg, hub))
	mux.POST(cfg.prefix+"/api/vote", serveVote(cfg, hub))
	mux.GET(cfg.prefix+"/api/player/:name", servePlayer(cfg, hub))
	mux.GET(cfg.prefix+"/api/game-state", serveGameState(cfg, hub))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub))

	mux.GET(cfg.prefix+"/qr", qrHandler(cfg))
}

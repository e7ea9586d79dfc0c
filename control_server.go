// control_server.go - WebSocket/HTTP control surface for the audio engine

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ControlMessage is the wire format of an inbound command. The string
// kinds mirror the engine's command set one to one.
type ControlMessage struct {
	Cmd   string   `json:"cmd"`
	Track *int     `json:"track,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Data  []byte   `json:"data,omitempty"`
}

var cmdKinds = map[string]int{
	"play":             CMD_PLAY,
	"stop":             CMD_STOP,
	"set_volume":       CMD_SET_VOLUME,
	"set_track_volume": CMD_SET_TRACK_VOLUME,
	"set_track_pan":    CMD_SET_TRACK_PAN,
	"toggle_mute":      CMD_TOGGLE_MUTE,
	"toggle_solo":      CMD_TOGGLE_SOLO,
	"set_bpm":          CMD_SET_BPM,
	"set_eq_low":       CMD_SET_EQ_LOW,
	"set_eq_mid":       CMD_SET_EQ_MID,
	"set_eq_high":      CMD_SET_EQ_HIGH,
	"set_limiter":      CMD_SET_LIMITER,
	"set_clip":         CMD_SET_CLIP,
}

// Command translates the wire message into an engine command. Unlike the
// engine's forgiving dispatch, the control layer validates: this is the
// upstream where malformed requests should be rejected.
func (m ControlMessage) Command() (AudioCommand, error) {
	kind, ok := cmdKinds[m.Cmd]
	if !ok {
		return AudioCommand{}, fmt.Errorf("unknown command %q", m.Cmd)
	}

	cmd := AudioCommand{Kind: kind, Track: -1, Data: m.Data}

	switch kind {
	case CMD_SET_TRACK_VOLUME, CMD_SET_TRACK_PAN:
		if m.Track == nil || m.Value == nil {
			return AudioCommand{}, fmt.Errorf("%s requires track and value", m.Cmd)
		}
	case CMD_TOGGLE_MUTE, CMD_TOGGLE_SOLO:
		if m.Track == nil {
			return AudioCommand{}, fmt.Errorf("%s requires track", m.Cmd)
		}
	case CMD_SET_VOLUME, CMD_SET_BPM, CMD_SET_EQ_LOW, CMD_SET_EQ_MID,
		CMD_SET_EQ_HIGH, CMD_SET_LIMITER, CMD_SET_CLIP:
		if m.Value == nil {
			return AudioCommand{}, fmt.Errorf("%s requires value", m.Cmd)
		}
	}

	if m.Track != nil {
		cmd.Track = *m.Track
	}
	if m.Value != nil {
		cmd.Value = *m.Value
	}
	return cmd, nil
}

// wsSession serializes writes to one websocket connection.
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSession) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// ControlServer exposes the engine's command and state contracts over
// HTTP: a websocket for command input and pushed transport snapshots,
// plus plain GET endpoints for synchronous polling.
type ControlServer struct {
	engine   *AudioEngine
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*wsSession]struct{}
}

func NewControlServer(engine *AudioEngine, log *slog.Logger) *ControlServer {
	return &ControlServer{
		engine: engine,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[*wsSession]struct{}),
	}
}

func (s *ControlServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/tracks", s.handleTracks)
	return mux
}

// Serve blocks, broadcasting transport snapshots to connected clients
// and accepting command connections until the listener fails.
func (s *ControlServer) Serve(addr string) error {
	go s.broadcastLoop()
	s.log.Info("control server listening", "addr", addr)
	return http.ListenAndServe(addr, s.routes())
}

// broadcastLoop is the single consumer of the engine's best-effort
// state channel; it fans snapshots out to every websocket client.
func (s *ControlServer) broadcastLoop() {
	for state := range s.engine.States() {
		s.mu.Lock()
		for sess := range s.sessions {
			if err := sess.writeJSON(state); err != nil {
				delete(s.sessions, sess)
				sess.conn.Close()
			}
		}
		s.mu.Unlock()
	}
}

func (s *ControlServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	sess := &wsSession{conn: conn}
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.log.Debug("control client connected", "remote", conn.RemoteAddr())

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("control client read error", "err", err)
			}
			return
		}

		cmd, err := msg.Command()
		if err != nil {
			s.reply(sess, err)
			continue
		}
		// Queue-full is recoverable and reported to the submitter;
		// the audio side never sees it.
		s.reply(sess, s.engine.Submit(cmd))
	}
}

// reply sends a per-command acknowledgement so submitters observe
// queue-full and validation errors synchronously.
func (s *ControlServer) reply(sess *wsSession, err error) {
	ack := struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}{OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	if werr := sess.writeJSON(ack); werr != nil {
		s.log.Debug("control reply failed", "err", werr)
	}
}

// handleState serves a guaranteed-fresh snapshot read directly from the
// transport atomics.
func (s *ControlServer) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.Snapshot()); err != nil {
		s.log.Debug("state encode failed", "err", err)
	}
}

func (s *ControlServer) handleTracks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.TrackSnapshot()); err != nil {
		s.log.Debug("tracks encode failed", "err", err)
	}
}

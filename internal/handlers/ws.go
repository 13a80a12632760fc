package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aaronzipp/survival-island/internal/session"
	"github.com/aaronzipp/survival-island/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Participants connect from phones on arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS attaches a participant to a room over a websocket. The host
// reconnects with its id from room creation; everyone else joins the
// roster with a fresh id.
func (ctx *Context) handleWS(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	s, ok := ctx.Registry.Get(code)
	if !ok {
		writeError(w, session.ErrRoomNotFound)
		return
	}

	participantID := r.URL.Query().Get("id")
	name := r.URL.Query().Get("name")
	isHost := participantID != "" && participantID == s.HostID
	if participantID == "" {
		participantID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("room %s: upgrade failed: %v", code, err)
		return
	}

	client := ctx.Hub.Register(code, participantID, conn)
	tr := ctx.Hub.Room(code)

	if !isHost {
		if err := s.Join(participantID, name); err != nil {
			tr.Send(participantID, "error", map[string]string{"message": err.Error()})
			ctx.Hub.Unregister(code, participantID)
			return
		}
	} else {
		tr.Send(participantID, "room-created", map[string]any{
			"roomCode":  code,
			"gameState": s.Snapshot(),
		})
	}

	go ctx.readLoop(s, client, tr, code, participantID)
}

// readLoop pumps inbound frames into the session until disconnect.
// Disconnection is not an error: it becomes an ordinary leave.
func (ctx *Context) readLoop(s *session.Session, client *transport.Client, tr session.Transport, code, participantID string) {
	defer func() {
		s.Leave(participantID)
		ctx.Hub.Unregister(code, participantID)
	}()

	for {
		env, err := client.ReadEnvelope()
		if err != nil {
			return
		}

		var cmdErr error
		switch env.Event {
		case "vote":
			cmdErr = s.Vote(participantID, payloadString(env.Payload, "action"))
		case "start-game":
			cmdErr = s.Start(participantID)
		case "skip-round":
			cmdErr = s.HostCommand(participantID, session.CmdSkipRound)
		case "end-game":
			cmdErr = s.HostCommand(participantID, session.CmdEndGame)
		case "leave":
			return
		default:
			cmdErr = fmt.Errorf("unknown event %q", env.Event)
		}

		// Errors go to the originating participant only; the room is
		// never affected.
		if cmdErr != nil {
			tr.Send(participantID, "error", map[string]string{"message": cmdErr.Error()})
		}
	}
}

// handleWatch streams room broadcasts to a spectator over SSE.
func (ctx *Context) handleWatch(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	s, ok := ctx.Registry.Get(code)
	if !ok {
		writeError(w, session.ErrRoomNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := ctx.Hub.AddSpectator(code)
	defer ctx.Hub.RemoveSpectator(code, ch)

	// Initial snapshot so late spectators render immediately.
	if data, err := snapshotFrame(s); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func snapshotFrame(s *session.Session) ([]byte, error) {
	return encodeEnvelope("state", s.Snapshot())
}

func payloadString(payload any, key string) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// Package handlers exposes the thin HTTP surface over the engine:
// room creation, the participant websocket, the spectator stream, and
// QR onboarding. Game rules live entirely in internal/session and
// internal/game.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aaronzipp/survival-island/internal/config"
	"github.com/aaronzipp/survival-island/internal/onboarding"
	"github.com/aaronzipp/survival-island/internal/session"
	"github.com/aaronzipp/survival-island/internal/transport"
)

// Context carries the handlers' dependencies.
type Context struct {
	Cfg      config.Config
	Registry *session.Registry
	Hub      *transport.Hub
}

// NewRouter builds the HTTP routes.
func NewRouter(ctx *Context) http.Handler {
	r := chi.NewRouter()
	r.Post("/rooms", ctx.handleCreateRoom)
	r.Get("/rooms/{code}", ctx.handleRoomState)
	r.Get("/rooms/{code}/qr", ctx.handleRoomQR)
	r.Get("/ws/{code}", ctx.handleWS)
	r.Get("/watch/{code}", ctx.handleWatch)
	return r
}

// handleCreateRoom creates a session and returns the host credentials
// plus onboarding material.
func (ctx *Context) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	hostID := uuid.NewString()
	s := ctx.Registry.Create(hostID)

	qr, err := onboarding.QRDataURL(ctx.Cfg.BaseURL, s.Code)
	if err != nil {
		// The room still works without a QR code.
		qr = ""
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"roomCode": s.Code,
		"hostId":   hostID,
		"joinUrl":  onboarding.JoinURL(ctx.Cfg.BaseURL, s.Code),
		"qrCode":   qr,
	})
}

// handleRoomState returns the public snapshot of a room.
func (ctx *Context) handleRoomState(w http.ResponseWriter, r *http.Request) {
	s, ok := ctx.Registry.Get(roomCode(r))
	if !ok {
		writeError(w, session.ErrRoomNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// handleRoomQR serves the join QR as a PNG.
func (ctx *Context) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	if _, ok := ctx.Registry.Get(code); !ok {
		writeError(w, session.ErrRoomNotFound)
		return
	}
	png, err := onboarding.QRPNG(ctx.Cfg.BaseURL, code)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func roomCode(r *http.Request) string {
	return strings.ToUpper(chi.URLParam(r, "code"))
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	return json.Marshal(transport.Envelope{Event: event, Payload: payload})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrRoomNotFound), errors.Is(err, session.ErrUnknownPlayer):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrRoomFull),
		errors.Is(err, session.ErrGameInProgress),
		errors.Is(err, session.ErrNotEnoughPlayers),
		errors.Is(err, session.ErrVotingNotActive):
		status = http.StatusConflict
	case errors.Is(err, session.ErrUnauthorized):
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

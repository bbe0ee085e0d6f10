package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
	"github.com/louisbranch/hollowspire.game/internal/platform/timeouts"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/sessions"
	"golang.org/x/net/websocket"
)

// handleWatch upgrades the request, pushes a snapshot frame, then one
// JSON frame per successful tree mutation until the client hangs up.
func (h *Handler) handleWatch(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.streamTree).ServeHTTP(w, r)
}

func (h *Handler) streamTree(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	req := conn.Request()
	characterID := chi.URLParam(req, "characterID")
	send := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(timeouts.WatchWrite))
		return json.NewEncoder(conn).Encode(v)
	}

	events, cancel, err := h.sessions.Watch(req.Context(), characterID)
	if err != nil {
		code := apperrors.CodeOf(err)
		_ = send(errorBody{Code: string(code), Message: err.Error()})
		return
	}
	defer cancel()

	hello, err := h.watchSnapshot(req.Context(), characterID)
	if err != nil {
		code := apperrors.CodeOf(err)
		_ = send(errorBody{Code: string(code), Message: err.Error()})
		return
	}
	if err := send(hello); err != nil {
		return
	}

	// Inbound frames are ignored, but the drain notices the peer closing
	// so the watcher is released without waiting for a failed write.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		_, _ = io.Copy(io.Discard, conn)
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := send(event); err != nil {
				h.log.Debug("watch frame write failed", "character_id", characterID, "error", err)
				return
			}
		case <-disconnected:
			return
		case <-req.Context().Done():
			return
		}
	}
}

// watchSnapshot builds the frame sent on connect so clients start from
// the current tree instead of waiting for the first mutation.
func (h *Handler) watchSnapshot(ctx context.Context, characterID string) (sessions.MutationEvent, error) {
	snapshot, err := h.sessions.Snapshot(ctx, characterID)
	if err != nil {
		return sessions.MutationEvent{}, err
	}
	result, err := h.sessions.CalculateStats(ctx, characterID, nil, nil)
	if err != nil {
		return sessions.MutationEvent{}, err
	}
	return sessions.MutationEvent{
		Event:           "snapshot",
		AvailablePoints: snapshot.AvailablePoints,
		Stats:           result.Vector.Map(),
	}, nil
}

package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/tree"
	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/grant"
)

type treeResponse struct {
	CharacterID     string            `json:"characterId"`
	AllocatedNodes  []string          `json:"allocatedNodes"`
	AvailablePoints int               `json:"availablePoints"`
	Spent           int               `json:"spent"`
	ActiveKeystones []string          `json:"activeKeystones"`
	Character       *characterPayload `json:"character,omitempty"`
}

type characterPayload struct {
	Level int    `json:"level"`
	Class string `json:"class"`
}

type allocateRequest struct {
	NodeID string `json:"nodeId"`
}

type calculateRequest struct {
	BaseStats map[string]float64 `json:"baseStats,omitempty"`
	Equipment []effectPayload    `json:"equipment,omitempty"`
}

type calculateResponse struct {
	Stats   map[string]float64 `json:"stats"`
	Ignored []string           `json:"ignored,omitempty"`
	Cached  bool               `json:"cached"`
}

type eventPayload struct {
	Seq         int64     `json:"seq"`
	Action      string    `json:"action"`
	NodeID      string    `json:"nodeId,omitempty"`
	PointsAfter int       `json:"pointsAfter"`
	CreatedAt   time.Time `json:"createdAt"`
}

func characterIDParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "characterID"))
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.sessions.Snapshot(r.Context(), characterIDParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := treeResponse{
		CharacterID:     snapshot.CharacterID,
		AllocatedNodes:  snapshot.AllocatedNodes,
		AvailablePoints: snapshot.AvailablePoints,
		Spent:           snapshot.Spent,
		ActiveKeystones: snapshot.ActiveKeystones,
	}
	if snapshot.Character != (tree.CharacterContext{}) {
		resp.Character = &characterPayload{
			Level: snapshot.Character.Level,
			Class: snapshot.Character.Class,
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	nodeID := strings.TrimSpace(req.NodeID)
	if nodeID == "" {
		h.writeError(w, r, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			"nodeId is required", map[string]string{"Field": "nodeId"}))
		return
	}

	event, err := h.sessions.Allocate(r.Context(), characterIDParam(r), nodeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	nodeID := strings.TrimSpace(chi.URLParam(r, "nodeID"))
	event, err := h.sessions.Refund(r.Context(), characterIDParam(r), nodeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

// handleReset refunds the whole tree. Resets are an earned currency, so
// the request must carry a respec grant scoped to this character.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	characterID := characterIDParam(r)
	if !h.resetGrants.Configured() {
		h.writeError(w, r, apperrors.New(apperrors.CodeUnauthenticated,
			"respec grants are not configured"))
		return
	}
	if _, err := grant.Verify(bearerToken(r), characterID, h.resetGrants); err != nil {
		h.writeError(w, r, err)
		return
	}

	event, err := h.sessions.Reset(r.Context(), characterID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (h *Handler) handleCharacterContext(w http.ResponseWriter, r *http.Request) {
	var req characterPayload
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Level < 0 {
		h.writeError(w, r, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			"level must not be negative", map[string]string{"Field": "level"}))
		return
	}

	character := tree.CharacterContext{Level: req.Level, Class: strings.TrimSpace(req.Class)}
	if err := h.sessions.SetCharacterContext(r.Context(), characterIDParam(r), character); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCalculateStats(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var equipment []graph.Effect
	for _, payload := range req.Equipment {
		op := graph.ParseOp(strings.TrimSpace(payload.Op))
		if op == graph.OpUnknown {
			h.writeError(w, r, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
				"unknown equipment effect operation", map[string]string{"Field": "equipment.op"}))
			return
		}
		equipment = append(equipment, graph.Effect{
			Stat:      payload.Stat,
			Op:        op,
			Value:     payload.Value,
			Condition: payload.Condition,
		})
	}

	result, err := h.sessions.CalculateStats(r.Context(), characterIDParam(r), req.BaseStats, equipment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, calculateResponse{
		Stats:   result.Vector.Map(),
		Ignored: result.Ignored,
		Cached:  result.Cached,
	})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, r, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
				"limit must be a non-negative integer", map[string]string{"Field": "limit"}))
			return
		}
		limit = parsed
	}

	events, err := h.sessions.History(r.Context(), characterIDParam(r), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	listing := struct {
		Events []eventPayload `json:"events"`
	}{Events: make([]eventPayload, 0, len(events))}
	for _, event := range events {
		listing.Events = append(listing.Events, eventPayload{
			Seq:         event.Seq,
			Action:      string(event.Action),
			NodeID:      event.NodeID,
			PointsAfter: event.PointsAfter,
			CreatedAt:   event.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, listing)
}

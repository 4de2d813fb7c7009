// internal/api/handlers.go
//
// Request handlers.  Each one decodes, calls exactly one collaborator, and
// renders the result or maps the error via respondErr.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/vrclink/internal/auth"
	"github.com/yanizio/vrclink/internal/instance"
	"github.com/yanizio/vrclink/internal/shortcode"
)

type handlers struct {
	d Deps
}

type verifyRequest struct {
	VRChatID   string `json:"vrchat_id"   validate:"required,vrchatid"`
	VRChatName string `json:"vrchat_name" validate:"required,max=64"`
}

type statusResponse struct {
	DiscordID  string `json:"discord_id"`
	IsVerified bool   `json:"is_verified"`
	IsBanned   bool   `json:"is_banned"`
}

type transitionResponse struct {
	DiscordID string `json:"discord_id"`
	Action    string `json:"action"`
	Actor     string `json:"actor"`
}

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.d.Profiles.GetProfile(r.Context(), chi.URLParam(r, "discordID"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "discordID")
	verified, err := h.d.Profiles.IsVerified(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	banned, err := h.d.Profiles.IsBanned(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{DiscordID: id, IsVerified: verified, IsBanned: banned})
}

func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.d.History == nil {
		writeError(w, http.StatusNotImplemented, "audit trail not configured")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1..500")
			return
		}
		limit = n
	}
	events, err := h.d.History.ListByDiscordID(r.Context(), chi.URLParam(r, "discordID"), limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) postVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	id, actor := chi.URLParam(r, "discordID"), staff(r)
	if err := h.d.Transitions.Verify(r.Context(), id, req.VRChatID, req.VRChatName, actor); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{DiscordID: id, Action: "verify", Actor: actor})
}

func (h *handlers) postUnverify(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "unverify", h.d.Transitions.Unverify)
}

func (h *handlers) postBan(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "ban", h.d.Transitions.Ban)
}

func (h *handlers) postUnban(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "unban", h.d.Transitions.Unban)
}

func (h *handlers) simple(w http.ResponseWriter, r *http.Request, action string,
	fn func(ctx context.Context, discordID, actor string) error) {
	id, actor := chi.URLParam(r, "discordID"), staff(r)
	if err := fn(r.Context(), id, actor); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{DiscordID: id, Action: action, Actor: actor})
}

func (h *handlers) postRefreshName(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "discordID")
	name, err := h.d.Transitions.RefreshName(r.Context(), id, staff(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"discord_id": id, "vrchat_name": name})
}

func (h *handlers) getShortCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "vrchatID")
	code, err := shortcode.Generate(id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"vrchat_id": id, "code": code})
}

func (h *handlers) getInstance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}
	d, ok := instance.Parse(q)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "not a VRChat world or instance reference")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func staff(r *http.Request) string {
	id, _ := auth.StaffID(r.Context())
	return id
}

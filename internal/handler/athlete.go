package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ironforge/athlete-api/internal/repository"
	"github.com/ironforge/athlete-api/internal/service"
)

// AthleteHandler serves /api/athlete. Every route acts on the signed-in
// user; RequireAuth must run first.
type AthleteHandler struct {
	responder
	athletes *service.AthleteService
}

func NewAthleteHandler(svc *service.AthleteService, logger *slog.Logger, production bool) *AthleteHandler {
	return &AthleteHandler{
		responder: responder{logger: logger, production: production},
		athletes:  svc,
	}
}

// page reads ?limit and ?offset.
func page(r *http.Request) (repository.ListOptions, error) {
	q := r.URL.Query()
	return service.Page(q.Get("limit"), q.Get("offset"))
}

func meta(opts repository.ListOptions) envelope {
	return envelope{"limit": opts.Limit, "offset": opts.Offset}
}

// HandleProfile returns the user, profile, training details and the most
// recent achievements and stats.
//
// HTTP: GET /api/athlete/profile?limit=50&offset=0
func (h *AthleteHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	opts, err := page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	snap, err := h.athletes.Snapshot(r.Context(), userID, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": snap, "meta": meta(opts)})
}

// HTTP: PUT /api/athlete/profile
func (h *AthleteHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.athletes.UpdateProfile, "Profile updated successfully.")
}

// HTTP: PUT /api/athlete/training
func (h *AthleteHandler) HandleUpdateTraining(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.athletes.UpdateTraining, "Training details updated.")
}

func (h *AthleteHandler) update(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID string, body map[string]any) error,
	message string,
) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := apply(r.Context(), userID, body); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": message})
}

// HTTP: POST /api/athlete/achievements → 201
func (h *AthleteHandler) HandleAddAchievement(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in service.AchievementInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.athletes.AddAchievement(r.Context(), userID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "message": "Achievement added.", "id": a.ID})
}

// HTTP: DELETE /api/athlete/achievements/{id}
func (h *AthleteHandler) HandleDeleteAchievement(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.athletes.DeleteAchievement(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Achievement deleted."})
}

// HTTP: POST /api/athlete/stats → 201
func (h *AthleteHandler) HandleAddStat(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in service.StatInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	st, err := h.athletes.AddStat(r.Context(), userID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "message": "Stat added.", "id": st.ID})
}

// HTTP: DELETE /api/athlete/stats/{id}
func (h *AthleteHandler) HandleDeleteStat(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.athletes.DeleteStat(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Stat deleted."})
}

// HandleStatsSeries returns the user's stats grouped per metric for charts.
//
// HTTP: GET /api/athlete/stats/series?limit=50&offset=0
func (h *AthleteHandler) HandleStatsSeries(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	opts, err := page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	series, err := h.athletes.StatsSeries(r.Context(), userID, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": series, "meta": meta(opts)})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"pricedeck/pkg/api"

	"github.com/google/uuid"
)

// ---------------------------------------------------------
// Internal Worker Endpoints
// These implement the claim/heartbeat/result contract for workers
// running outside the process. They sit behind RequireInternalAuth,
// never the user auth middleware.
// ---------------------------------------------------------

// InternalClaim handles POST /internal/reports/claim.
// Hands the oldest claimable report to the calling worker, or 204 when
// the queue is empty.
func (h *Handlers) InternalClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	workerToken, err := uuid.Parse(req.WorkerToken)
	if err != nil {
		h.httpError(w, "Invalid worker token", http.StatusBadRequest)
		return
	}

	staleAfter := h.cfg.StaleAfter
	if req.StaleMinutes > 0 {
		staleAfter = time.Duration(req.StaleMinutes) * time.Minute
	}

	rep, err := h.store.Claim(ctx, workerToken, staleAfter)
	if err != nil {
		h.logger(ctx).ErrorContext(ctx, "claim failed", "error", err)
		h.httpError(w, "Failed to claim", http.StatusInternalServerError)
		return
	}
	if rep == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.respondJson(w, http.StatusOK, api.ClaimedReport{
		ID:             rep.ID.String(),
		Address:        rep.Address,
		Attributes:     rep.Attributes,
		StartDate:      rep.DateStart.Format("2006-01-02"),
		EndDate:        rep.DateEnd.Format("2006-01-02"),
		DiscountPolicy: rep.DiscountPolicy,
		CacheKey:       rep.CacheKey,
		Attempts:       rep.Attempts,
	})
}

// InternalHeartbeat handles PUT /internal/reports/{id}/heartbeat.
// The worker calls this to say "I'm still working on it, don't give it
// to anyone else." Ok=false tells the worker its claim is gone and it
// must abandon the run.
func (h *Handlers) InternalHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reportID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid report id", http.StatusBadRequest)
		return
	}

	var req api.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}
	workerToken, err := uuid.Parse(req.WorkerToken)
	if err != nil {
		h.httpError(w, "Invalid worker token", http.StatusBadRequest)
		return
	}

	ok, err := h.store.Heartbeat(ctx, reportID, workerToken)
	if err != nil {
		h.httpError(w, "Failed to update heartbeat", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.AckResponse{Ok: ok})
}

// InternalResult handles PUT /internal/reports/{id}/result.
// The worker calls this when the run finishes or gives up. Both paths
// are guarded by the claim token: a superseded worker gets Ok=false and
// its result is discarded.
func (h *Handlers) InternalResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reportID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid report id", http.StatusBadRequest)
		return
	}

	var req api.ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}
	workerToken, err := uuid.Parse(req.WorkerToken)
	if err != nil {
		h.httpError(w, "Invalid worker token", http.StatusBadRequest)
		return
	}

	if req.Error != "" {
		ok, err := h.store.Fail(ctx, reportID, workerToken, req.Error, req.Meta)
		if err != nil {
			h.httpError(w, "Failed to record failure", http.StatusInternalServerError)
			return
		}
		h.respondJson(w, http.StatusOK, api.AckResponse{Ok: ok})
		return
	}

	if len(req.Summary) == 0 || len(req.Calendar) == 0 {
		h.httpError(w, "Summary and calendar are required on success", http.StatusBadRequest)
		return
	}

	if req.UpdatedAttributes != nil {
		// Same claim-token guard as Complete: a late result from a
		// superseded worker must not touch the attribute bag either.
		ok, err := h.store.UpdateReportAttributes(ctx, reportID, workerToken, *req.UpdatedAttributes)
		if err != nil {
			h.logger(ctx).WarnContext(ctx, "failed to merge scraped attributes", "report_id", reportID, "error", err)
		} else if !ok {
			h.respondJson(w, http.StatusOK, api.AckResponse{Ok: false})
			return
		}
	}

	ok, err := h.store.Complete(ctx, reportID, workerToken, req.Summary, req.Calendar, req.Meta)
	if err != nil {
		h.httpError(w, "Failed to record result", http.StatusInternalServerError)
		return
	}

	if ok {
		h.writeBackCache(r, reportID, req)
	}

	h.respondJson(w, http.StatusOK, api.AckResponse{Ok: ok})
}

// writeBackCache stores a completed result for future submissions.
// Best effort: a cache outage never turns a finished report into an
// error response for the worker.
func (h *Handlers) writeBackCache(r *http.Request, reportID uuid.UUID, req api.ResultRequest) {
	ctx := r.Context()

	rep, err := h.store.GetReportByID(ctx, reportID)
	if err != nil {
		h.logger(ctx).WarnContext(ctx, "cache write-back skipped", "report_id", reportID, "error", err)
		return
	}
	// url-mode results describe one specific listing page; they are
	// never served to criteria submissions.
	if rep.Attributes.InputMode == "url" {
		return
	}

	if err := h.store.Store(ctx, rep.CacheKey, req.Summary, req.Calendar, req.Meta, h.cfg.CacheTTL); err != nil {
		h.logger(ctx).WarnContext(ctx, "cache write-back failed", "report_id", reportID, "cache_key", rep.CacheKey, "error", err)
	}
}

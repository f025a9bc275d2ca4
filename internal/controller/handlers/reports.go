package handlers

import (
	"encoding/json"
	"net/http"

	"pricedeck/internal/controller/middleware"
	"pricedeck/internal/store"
	"pricedeck/pkg/api"

	"github.com/google/uuid"
)

// SubmitReport handles POST /reports.
// Anonymous submissions are allowed; an authenticated caller may
// additionally save the input as a listing or reference an existing one.
func (h *Handlers) SubmitReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	var userID *uuid.UUID
	if user, ok := middleware.UserFromContext(ctx); ok {
		userID = &user.ID
	}

	rep, err := h.reports.Submit(ctx, userID, req)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.respondJson(w, http.StatusCreated, api.SubmitReportResponse{
		ID:      rep.ID.String(),
		ShareID: rep.ShareID,
		Status:  string(rep.Status),
	})
}

// GetReport handles GET /reports/{shareID}.
// This is the polling read side: clients call it until the status is
// terminal. The share ID is the only credential needed.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.GetByShareID(r.Context(), r.PathValue("shareID"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.respondJson(w, http.StatusOK, toReportResponse(rep))
}

func toReportResponse(r *store.Report) api.ReportResponse {
	resp := api.ReportResponse{
		ID:             r.ID.String(),
		ShareID:        r.ShareID,
		Status:         string(r.Status),
		Address:        r.Address,
		Attributes:     r.Attributes,
		StartDate:      r.DateStart.Format("2006-01-02"),
		EndDate:        r.DateEnd.Format("2006-01-02"),
		DiscountPolicy: r.DiscountPolicy,
		Attempts:       r.Attempts,
		Error:          r.ErrorMessage,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}

	// Results are only exposed once the report is actually ready;
	// stale partial data from a reclaimed attempt stays hidden.
	if r.Status == store.StatusReady {
		resp.Summary = r.Summary
		resp.Calendar = r.Calendar
	}
	if r.Status != store.StatusError {
		resp.Error = nil
	}

	return resp
}

package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pricedeck/internal/controller/middleware"
	"pricedeck/internal/store"
	"pricedeck/pkg/api"

	"github.com/google/uuid"
)

// CreateListing handles POST /listings.
func (h *Handlers) CreateListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		h.httpError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req api.CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Address == "" {
		h.httpError(w, "Name and address are required", http.StatusBadRequest)
		return
	}

	l := &store.Listing{
		ID:        uuid.New(),
		UserID:    user.ID,
		Name:      req.Name,
		Address:   req.Address,
		CreatedAt: time.Now().UTC(),
	}
	if req.Attributes != nil {
		l.Attributes = *req.Attributes
	}
	if req.DiscountPolicy != nil {
		l.DiscountPolicy = *req.DiscountPolicy
	}

	if err := h.store.CreateListing(ctx, nil, l); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.respondJson(w, http.StatusCreated, toListingResponse(l))
}

// ListListings handles GET /listings.
func (h *Handlers) ListListings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		h.httpError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	listings, err := h.store.ListListingsByUser(ctx, user.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	resp := api.ListListingsResponse{Listings: []api.ListingResponse{}}
	for _, l := range listings {
		resp.Listings = append(resp.Listings, toListingResponse(l))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetListing handles GET /listings/{id}.
func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ownedListing(w, r)
	if !ok {
		return
	}
	h.respondJson(w, http.StatusOK, toListingResponse(l))
}

// UpdateListing handles PUT /listings/{id}.
// Nil request fields leave the stored value unchanged.
func (h *Handlers) UpdateListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	l, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	var req api.UpdateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Address != nil {
		l.Address = *req.Address
	}
	if req.Attributes != nil {
		l.Attributes = *req.Attributes
	}
	if req.DiscountPolicy != nil {
		l.DiscountPolicy = *req.DiscountPolicy
	}

	if err := h.store.UpdateListing(ctx, l); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.respondJson(w, http.StatusOK, toListingResponse(l))
}

// DeleteListing handles DELETE /listings/{id}.
// Reports linked to the listing survive; only the listing and its link
// rows go away.
func (h *Handlers) DeleteListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	l, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteListing(ctx, l.ID); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RerunListing handles POST /listings/{id}/rerun.
// It submits a fresh report from the stored input, with request fields
// overriding it field by field.
func (h *Handlers) RerunListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid listing id", http.StatusBadRequest)
		return
	}

	var userID *uuid.UUID
	if user, ok := middleware.UserFromContext(ctx); ok {
		userID = &user.ID
	}

	var req api.RerunListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	rep, err := h.reports.Rerun(ctx, userID, listingID, req)
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

// ownedListing loads the path listing and enforces ownership. Another
// user's listing reads as not found rather than forbidden so listing
// IDs don't leak.
func (h *Handlers) ownedListing(w http.ResponseWriter, r *http.Request) (*store.Listing, bool) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		h.httpError(w, "Authentication required", http.StatusUnauthorized)
		return nil, false
	}

	listingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid listing id", http.StatusBadRequest)
		return nil, false
	}

	l, err := h.store.GetListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.httpError(w, "Listing not found", http.StatusNotFound)
		} else {
			h.serviceError(w, r, err)
		}
		return nil, false
	}
	if l.UserID != user.ID {
		h.httpError(w, "Listing not found", http.StatusNotFound)
		return nil, false
	}

	return l, true
}

func toListingResponse(l *store.Listing) api.ListingResponse {
	resp := api.ListingResponse{
		ID:             l.ID.String(),
		Name:           l.Name,
		Address:        l.Address,
		Attributes:     l.Attributes,
		DiscountPolicy: l.DiscountPolicy,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
	if l.LatestReportID != nil {
		id := l.LatestReportID.String()
		resp.LatestReportID = &id
	}
	return resp
}

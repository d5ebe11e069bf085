package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/Harshitk-cp/vidocq/internal/service"
	"github.com/google/uuid"
)

const maxBatchSize = 500

type ClaimHandler struct {
	svc *service.IngestService
}

func NewClaimHandler(svc *service.IngestService) *ClaimHandler {
	return &ClaimHandler{svc: svc}
}

type createClaimResponse struct {
	Claim *domain.Claim     `json:"claim"`
	Fact  *domain.FusedFact `json:"fact"`
}

type batchItem struct {
	ClaimID uuid.UUID         `json:"claim_id"`
	Fact    *domain.FusedFact `json:"fact,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type batchResponse struct {
	Results  []batchItem `json:"results"`
	Accepted int         `json:"accepted"`
	Failed   int         `json:"failed"`
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ClaimInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claim, fact, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createClaimResponse{Claim: claim, Fact: fact})
}

func (h *ClaimHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Claims []service.ClaimInput `json:"claims"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Claims) == 0 {
		writeError(w, http.StatusBadRequest, "claims is required")
		return
	}
	if len(req.Claims) > maxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "too many claims in batch")
		return
	}

	claims, results, err := h.svc.SubmitBatch(r.Context(), req.Claims)
	if err != nil && results == nil {
		writeSubmitError(w, err)
		return
	}

	resp := batchResponse{Results: make([]batchItem, len(claims))}
	for i := range claims {
		item := batchItem{ClaimID: claims[i].ID}
		if i < len(results) {
			item.Fact = results[i].Fact
			if results[i].Err != nil {
				item.Error = results[i].Err.Error()
			}
		}
		if item.Error == "" && item.Fact != nil {
			resp.Accepted++
		} else {
			resp.Failed++
		}
		resp.Results[i] = item
	}

	status := http.StatusCreated
	if resp.Accepted == 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCoordinatorClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "failed to ingest claim")
	}
}

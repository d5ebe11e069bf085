package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/Harshitk-cp/vidocq/internal/service"
	"github.com/Harshitk-cp/vidocq/internal/store"
)

const (
	defaultListLimit  = 100
	msgInvalidFactKey = "subject, relation and object are required and may not contain |"
)

type FactHandler struct {
	coordinator *service.Coordinator
	versions    *service.VersioningService
}

func NewFactHandler(coordinator *service.Coordinator, versions *service.VersioningService) *FactHandler {
	return &FactHandler{coordinator: coordinator, versions: versions}
}

type claimsResponse struct {
	FactKey domain.FactKey       `json:"fact_key"`
	ShowAll bool                 `json:"show_all"`
	Claims  []domain.ScoredClaim `json:"claims"`
}

type historyResponse struct {
	FactKey   domain.FactKey          `json:"fact_key"`
	Versions  []domain.FactVersion    `json:"versions"`
	FlipFlops *service.FlipFlopReport `json:"flip_flops"`
}

// Get returns the current belief for one key, or lists beliefs filtered by
// zone and narrative_war when no key is given.
func (h *FactHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("subject") == "" && q.Get("relation") == "" && q.Get("object") == "" {
		h.list(w, r)
		return
	}

	key, ok := factKeyFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidFactKey)
		return
	}

	fact, err := h.coordinator.Current(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "fact not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get fact")
		return
	}

	writeJSON(w, http.StatusOK, fact)
}

func (h *FactHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := domain.ListFactsOpts{Limit: defaultListLimit}

	if z := q.Get("zone"); z != "" {
		zone := domain.Zone(z)
		switch zone {
		case domain.ZoneConfirmed, domain.ZoneUnverified, domain.ZoneQuarantine:
			opts.Zone = &zone
		default:
			writeError(w, http.StatusBadRequest, "invalid zone")
			return
		}
	}
	if nw := q.Get("narrative_war"); nw != "" {
		b, err := strconv.ParseBool(nw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid narrative_war")
			return
		}
		opts.NarrativeWar = &b
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}

	facts, err := h.coordinator.ListFacts(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list facts")
		return
	}
	if facts == nil {
		facts = []domain.FusedFact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": facts})
}

func (h *FactHandler) Claims(w http.ResponseWriter, r *http.Request) {
	key, ok := factKeyFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidFactKey)
		return
	}
	showAll, _ := strconv.ParseBool(r.URL.Query().Get("show_all"))

	claims, err := h.coordinator.Claims(r.Context(), key, showAll)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	if claims == nil {
		claims = []domain.ScoredClaim{}
	}

	writeJSON(w, http.StatusOK, claimsResponse{FactKey: key, ShowAll: showAll, Claims: claims})
}

func (h *FactHandler) AsOf(w http.ResponseWriter, r *http.Request) {
	key, ok := factKeyFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidFactKey)
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "at must be an RFC3339 timestamp")
		return
	}

	v, found, err := h.versions.AsOf(r.Context(), key, at)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no belief at that time")
		return
	}

	writeJSON(w, http.StatusOK, v)
}

func (h *FactHandler) History(w http.ResponseWriter, r *http.Request) {
	key, ok := factKeyFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidFactKey)
		return
	}

	versions, err := h.versions.History(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if versions == nil {
		versions = []domain.FactVersion{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		FactKey:   key,
		Versions:  versions,
		FlipFlops: service.CountFlipFlops(key, versions),
	})
}

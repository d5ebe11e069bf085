package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Harshitk-cp/vidocq/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// factKeyFromQuery reads subject, relation and object query parameters.
func factKeyFromQuery(r *http.Request) (domain.FactKey, bool) {
	q := r.URL.Query()
	key := domain.NewFactKey(q.Get("subject"), q.Get("relation"), q.Get("object"))
	return key, key.Valid()
}

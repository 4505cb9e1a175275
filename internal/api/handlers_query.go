package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Yates-Labs/scholar/internal/rag"
)

const maxQueryBytes = 64 * 1024

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	QueryID string       `json:"query_id"`
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	result, err := s.asker.Ask(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuery) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("query failed", "error", err)
		jsonError(w, "query failed", http.StatusInternalServerError)
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []rag.Source{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(queryResponse{
		QueryID: result.QueryID,
		Answer:  result.Answer.Text,
		Sources: sources,
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

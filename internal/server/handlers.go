package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/similarity"
	"github.com/hyperjump/ruiji/internal/store"
	"github.com/hyperjump/ruiji/pkg/utils"
)

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	idx, ok := s.indexes[req.Index]
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown index")
		return
	}
	s.logger.Debug("match request", zap.String("index", req.Index), zap.String("query", utils.Truncate(req.Query, 200)))

	match, err := idx.Similar(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			s.respondError(w, http.StatusConflict, "index holds no values; update it first")
			return
		}
		s.logger.Error("match failed", zap.String("index", req.Index), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.MatchResponse{
		Index: req.Index,
		Query: req.Query,
		Value: match.Value,
		Score: match.Score,
	})
}

func (s *Server) handleUpdateOne(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	idx, ok := s.indexes[name]
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown index")
		return
	}
	s.logger.Debug("update request", zap.String("index", name))

	delta, err := idx.Update(r.Context())
	if err != nil {
		s.logger.Error("update failed", zap.String("index", name), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.UpdateResult{Index: name, Added: delta.Added, Removed: delta.Removed})
}

func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	results := s.registry.UpdateAll(r.Context())
	report := models.UpdateReport{Results: make([]models.UpdateResult, 0, len(results))}
	for _, res := range results {
		out := models.UpdateResult{
			Index:   s.indexName(res.Key),
			Added:   res.Delta.Added,
			Removed: res.Delta.Removed,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		report.Results = append(report.Results, out)
	}
	if failed := report.Failed(); len(failed) > 0 {
		s.logger.Warn("bulk update finished with failures", zap.Int("failed", len(failed)))
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request) {
	statuses := make([]models.IndexStatus, 0, len(s.indexes))
	for name, idx := range s.indexes {
		status := models.IndexStatus{
			Name:  name,
			State: idx.State().String(),
		}
		if n, err := idx.Len(r.Context()); err == nil {
			status.Size = n
		}
		if err := idx.LastError(); err != nil {
			status.LastError = err.Error()
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	s.respondJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) indexName(key similarity.Key) string {
	if name, ok := s.keyToName[key.String()]; ok {
		return name
	}
	return key.String()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

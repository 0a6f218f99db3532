package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/wakaru/internal/knowledge"
	"github.com/hyperjump/wakaru/internal/models"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("analyze request", zap.String("query", req.Query), zap.Bool("augment", req.Augment))
	analysis, err := s.router.Analyze(r.Context(), &req)
	if err != nil {
		s.logger.Error("analyze failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAddKnowledge(w http.ResponseWriter, r *http.Request) {
	var input models.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add knowledge request", zap.String("id", input.ID), zap.String("title", input.Title))
	entry, err := s.store.Add(r.Context(), &input)
	if err != nil {
		if errors.Is(err, knowledge.ErrEmptyContent) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("add knowledge failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleQueryKnowledge(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rc := s.config.Routing
	if err := req.Validate(rc.DefaultTopK, rc.MaxTopK, rc.DefaultMinSimilarity); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query knowledge request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	matches, err := s.store.Query(r.Context(), req.Query, req.TopK, req.MinSimilarity)
	if err != nil {
		s.logger.Error("query knowledge failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []*models.Match{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   req.Query,
		"results": matches,
		"count":   len(matches),
	})
}

func (s *Server) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.GetAll(r.Context())
	if err != nil {
		s.logger.Error("list knowledge failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []*models.Entry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete knowledge request", zap.String("id", id))
	found, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.logger.Error("delete knowledge failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": found})
}

func (s *Server) handleClearKnowledge(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Clear(r.Context())
	if err != nil {
		s.logger.Error("clear knowledge failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "cleared", "removed": count})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("status: store stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"entries":            stats.Entries,
		"vector_index_size":  stats.VectorIndexSize,
		"dimensions":         stats.Dimensions,
		"embedder_available": stats.EmbedderAvailable,
		"model":              stats.Model,
		"config": map[string]interface{}{
			"ambiguity_threshold":    s.config.Routing.AmbiguityThreshold,
			"unknown_intent_floor":   s.config.Routing.UnknownIntentFloor,
			"default_top_k":          s.config.Routing.DefaultTopK,
			"default_min_similarity": s.config.Routing.DefaultMinSimilarity,
			"database_path":          s.config.Storage.DatabasePath,
			"vector_index_path":      s.config.Storage.VectorIndexPath,
			"keyword_index_path":     s.config.Storage.KeywordIndexPath,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

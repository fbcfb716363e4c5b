package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/memory"
	"github.com/sourknives/cortex-memory/internal/models"
)

func (s *Server) handleStoreMemory(w http.ResponseWriter, r *http.Request) {
	var req memory.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserMessage == "" && req.AIResponse == "" {
		s.respondError(w, http.StatusBadRequest, "user_message or ai_response is required")
		return
	}
	s.logger.Debug("store memory request", zap.String("tool", req.ToolName))
	result, err := s.processor.ProcessTurn(r.Context(), req)
	if err != nil {
		s.logger.Error("store memory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if result.Stored {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, result)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.processor.GetMemory(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "memory not found")
		return
	}
	s.respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete memory request", zap.String("id", id))
	if err := s.processor.RemoveMemory(r.Context(), id); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if query.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if query.Type == "" {
		query.Type = models.SearchTypeHybrid
	}
	if query.Limit <= 0 {
		query.Limit = s.config.Search.DefaultLimit
	}
	if query.Limit > s.config.Search.MaxLimit {
		query.Limit = s.config.Search.MaxLimit
	}
	s.logger.Debug("search request",
		zap.String("text", query.Text),
		zap.String("type", string(query.Type)),
		zap.Int("limit", query.Limit))
	results, err := s.engine.Search(r.Context(), query.Text, query.Limit, query.Filters, query.Type)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

type feedbackRequest struct {
	MemoryID  string `json:"memory_id"`
	Category  string `json:"category"`
	Type      string `json:"type"`
	Suggested bool   `json:"suggested"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MemoryID == "" {
		s.respondError(w, http.StatusBadRequest, "memory_id is required")
		return
	}
	fbType := models.FeedbackType(req.Type)
	switch fbType {
	case models.FeedbackApproved, models.FeedbackRejected, models.FeedbackCorrected:
	default:
		s.respondError(w, http.StatusBadRequest, "type must be approved, rejected, or corrected")
		return
	}
	err := s.processor.Feedback(r.Context(), req.MemoryID, models.Category(req.Category), fbType, req.Suggested)
	if err != nil {
		s.logger.Error("feedback failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.storage.ListProjects(r.Context())
	if err != nil {
		s.logger.Error("list projects failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convCount, err := s.storage.CountConversations(ctx)
	if err != nil {
		s.logger.Error("status: count conversations failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	projects, err := s.storage.ListProjects(ctx)
	if err != nil {
		s.logger.Error("status: list projects failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	weights := s.engine.Weights()
	resp := map[string]interface{}{
		"conversations":     convCount,
		"projects":          len(projects),
		"vector_index_size": s.engine.Len(),
		"search_weights":    weights,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"vector_index_type":    s.config.Index.Kind,
			"embedding_backend":    s.config.Embedding.Backend,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"database_path":        s.config.Storage.DatabasePath,
			"index_dir":            s.config.Storage.IndexDir,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

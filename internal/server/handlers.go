package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/config"
	"github.com/hyperjump/notesearch/internal/models"
	"github.com/hyperjump/notesearch/internal/refresh"
	"github.com/hyperjump/notesearch/internal/storage"
)

const defaultListLimit = 50

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		q := r.URL.Query()
		query.Query = q.Get("q")
		query.Language = q.Get("language")
		if v := q.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			query.Limit = limit
		}
	}
	if err := query.Validate(s.config.Search.DefaultLimit, s.config.Search.MaxHits); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Language == "" {
		query.Language = s.indexer.Language()
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))

	start := time.Now()
	results, err := s.engine.Search(r.Context(), query.Query, s.indexer.IndexName(), query.Language, query.Limit)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     query.Query,
		Language:  query.Language,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	language := r.URL.Query().Get("language")
	if language == "" {
		language = s.indexer.Language()
	}
	n, err := s.engine.Count(r.Context(), s.indexer.IndexName(), language)
	if err != nil {
		s.fail(w, "count failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"index":     s.indexer.IndexName(),
		"language":  language,
		"documents": n,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("refresh request")
	n, err := s.indexer.Refresh(r.Context(), nil)
	if err != nil {
		s.fail(w, "refresh failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"index":    s.indexer.IndexName(),
		"language": s.indexer.Language(),
		"records":  n,
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"current":   s.indexer.Language(),
		"supported": s.engine.SupportedLanguages(),
	})
}

type languageRequest struct {
	Language string `json:"language"`
}

// handleSetLanguage rebuilds the index in the requested language and persists
// the choice when a config path is known.
func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("set language request", zap.String("language", req.Language))
	n, err := s.indexer.SwitchLanguage(r.Context(), req.Language, nil)
	if err != nil {
		s.fail(w, "language switch failed", err)
		return
	}
	if s.configPath != "" {
		s.configMu.Lock()
		s.config.Search.Language = req.Language
		err := config.Save(s.configPath, s.config)
		s.configMu.Unlock()
		if err != nil {
			s.logger.Warn("failed to persist search language", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"language": req.Language,
		"records":  n,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records := make(map[string]int64, len(models.Kinds))
	for _, kind := range models.Kinds {
		n, err := s.storage.Count(ctx, kind)
		if err != nil {
			s.fail(w, "status: count records failed", err)
			return
		}
		records[kind.String()] = n
	}
	language := s.indexer.Language()
	docs, err := s.engine.Count(ctx, s.indexer.IndexName(), language)
	if err != nil {
		s.fail(w, "status: count documents failed", err)
		return
	}
	resp := map[string]interface{}{
		"index":     s.indexer.IndexName(),
		"language":  language,
		"records":   records,
		"documents": docs,
	}
	if usage, err := storage.MeasureUsage(s.config.Storage.DatabasePath, s.config.Storage.IndexRoot); err == nil {
		resp["disk_usage"] = usage
	} else {
		s.logger.Debug("status: disk usage unavailable", zap.Error(err))
	}
	if s.runs != nil {
		if run := s.runs.LastRun(); run != nil {
			resp["last_refresh"] = run
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	offset, limit := 0, defaultListLimit
	q := r.URL.Query()
	for name, dst := range map[string]*int{"offset": &offset, "limit": &limit} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				s.respondError(w, http.StatusBadRequest, "invalid "+name)
				return
			}
			*dst = n
		}
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	records, err := s.storage.List(r.Context(), kind, offset, limit)
	if err != nil {
		s.fail(w, "list records failed", err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	rec, err := decodeRecord(r, kind, 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.storage.Save(r.Context(), rec); err != nil {
		s.fail(w, "save record failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	rec, err := s.storage.Get(r.Context(), id)
	if err != nil {
		s.fail(w, "get record failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	rec, err := decodeRecord(r, id.Kind, id.ID)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.storage.Save(r.Context(), rec); err != nil {
		s.fail(w, "update record failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	s.logger.Debug("delete record request", zap.Stringer("id", id))
	if err := s.storage.Delete(r.Context(), id); err != nil {
		s.fail(w, "delete record failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) kindParam(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return 0, false
	}
	return kind, true
}

func (s *Server) idParam(w http.ResponseWriter, r *http.Request) (models.UniqueID, bool) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return models.UniqueID{}, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid record id")
		return models.UniqueID{}, false
	}
	return models.UniqueID{Kind: kind, ID: id}, true
}

// decodeRecord reads a record of kind from the request body and gives it id.
func decodeRecord(r *http.Request, kind models.Kind, id int64) (models.Record, error) {
	var rec models.Record
	switch kind {
	case models.KindNote:
		rec = &models.Note{}
	case models.KindText:
		rec = &models.Text{}
	case models.KindPerson:
		rec = &models.Person{}
	default:
		return nil, errors.New("unknown record kind")
	}
	if err := json.NewDecoder(r.Body).Decode(rec); err != nil {
		return nil, errors.New("invalid request body")
	}
	switch v := rec.(type) {
	case *models.Note:
		v.ID = id
	case *models.Text:
		v.ID = id
	case *models.Person:
		v.ID = id
	}
	return rec, nil
}

// fail logs err and responds with the status matching its kind.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrQuerySyntax), errors.Is(err, models.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, refresh.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, refresh.ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

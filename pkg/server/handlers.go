package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pario-ai/skillgate/pkg/api"
	"github.com/pario-ai/skillgate/pkg/contextchain"
	"github.com/pario-ai/skillgate/pkg/models"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}
	res, err := s.svc.Query(r.Context(), req)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	cacheHeader(w, res.CacheHit)
	writeJSON(w, http.StatusOK, res)
}

func cacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Skillgate-Cache", "hit")
	} else {
		w.Header().Set("X-Skillgate-Cache", "miss")
	}
}

type batchRequest struct {
	Queries []models.QueryRequest `json:"queries"`
}

type batchResponse struct {
	Results []models.QueryResult `json:"results"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		writeJSONError(w, http.StatusBadRequest, "queries must not be empty")
		return
	}
	for _, q := range req.Queries {
		if q.Query == "" {
			writeJSONError(w, http.StatusBadRequest, "every query needs text")
			return
		}
	}
	results, err := s.svc.BatchQuery(r.Context(), req.Queries)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListSkills(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"skills": s.svc.ListSkills()})
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	skill, ok := s.svc.GetSkill(r.PathValue("id"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "skill not found")
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	p, found, err := s.svc.GetPattern(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, "pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddPattern(w http.ResponseWriter, r *http.Request) {
	var p api.Pattern
	if !decode(w, r, &p) {
		return
	}
	if err := s.svc.AddPattern(r.Context(), p); err != nil {
		if errors.Is(err, api.ErrInvalidPattern) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": p.ID})
}

type toolRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

func (s *Server) handleValidateTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Tools().Validate(req.Tool, req.Parameters))
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if !decode(w, r, &req) {
		return
	}
	call := s.svc.Tools().CreateCall(req.Tool, req.Parameters)
	if call.Status == models.ToolInvalid {
		writeJSON(w, http.StatusUnprocessableEntity, call)
		return
	}
	call, err := s.svc.Tools().Execute(r.Context(), call, nil)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	cacheHeader(w, call.CacheHit)
	writeJSON(w, http.StatusOK, call)
}

type contextRequest struct {
	Content     any               `json:"content"`
	Type        string            `json:"type"`
	SourceSkill string            `json:"source_skill"`
	TargetSkill string            `json:"target_skill,omitempty"`
	TTLSeconds  *float64          `json:"ttl_seconds,omitempty"`
	Relevance   *float64          `json:"relevance,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type contextResponse struct {
	Entry      models.ContextEntry       `json:"entry"`
	Validation models.ContextValidation `json:"validation"`
}

func (s *Server) handleAddContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if !decode(w, r, &req) {
		return
	}
	typ, err := models.ParseContextType(req.Type)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts []contextchain.EntryOption
	if req.TargetSkill != "" {
		opts = append(opts, contextchain.WithTarget(req.TargetSkill))
	}
	if req.TTLSeconds != nil {
		if *req.TTLSeconds < 0 {
			writeJSONError(w, http.StatusBadRequest, "ttl_seconds must not be negative")
			return
		}
		opts = append(opts, contextchain.WithTTL(time.Duration(*req.TTLSeconds*float64(time.Second))))
	}
	if req.Relevance != nil {
		opts = append(opts, contextchain.WithRelevance(*req.Relevance))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, contextchain.WithMetadata(req.Metadata))
	}

	chains := s.svc.Chains()
	entry := chains.CreateContext(req.Content, typ, req.SourceSkill, opts...)
	if err := chains.AddToChain(r.Context(), r.PathValue("chain"), entry); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contextResponse{
		Entry:      entry,
		Validation: contextchain.ValidateContext(entry),
	})
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	chainID := r.PathValue("chain")
	chains := s.svc.Chains()

	if q := r.URL.Query().Get("q"); q != "" {
		k, err := topK(r.URL.Query().Get("k"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		ranked, err := chains.GetRelevantContext(r.Context(), chainID, q, k)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chain_id": chainID, "results": ranked})
		return
	}

	chain, ok, err := chains.GetChain(r.Context(), chainID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "chain not found")
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

func topK(raw string) (int, error) {
	if raw == "" {
		return contextchain.DefaultTopK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k <= 0 {
		return 0, errors.New("k must be a positive integer")
	}
	return k, nil
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.ClearCache(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}

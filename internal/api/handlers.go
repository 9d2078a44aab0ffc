package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"fusiondex/internal/fusion"
	"fusiondex/internal/logging"
	"fusiondex/internal/services"
	"fusiondex/internal/teams"
)

const maxRequestBytes = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Offline: s.opts.Offline,
		Workers: s.opts.Workers,
	}
	if s.opts.Cache != nil {
		resp.CacheEntries = s.opts.Cache.Len()
		resp.CacheSource = string(s.opts.Cache.Source())
		resp.ReadOnly = s.opts.Cache.ReadOnly()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFusions(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query()["ids"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.opts.Resolver == nil {
		s.fail(w, r, services.Wrap(services.ErrConfiguration, "api", "fusions", "resolver not configured", nil))
		return
	}
	result := s.opts.Resolver.Resolve(r.Context(), ids)
	s.writeJSON(w, http.StatusOK, FromResult(result, spritePrefix))
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	var req TeamsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, services.Wrap(services.ErrValidation, "api", "teams", "invalid request body", err))
		return
	}
	ids := fusion.UniqueIDs(req.IDs)
	if len(ids) < 2 {
		s.fail(w, r, services.Wrap(services.ErrValidation, "api", "teams", "at least two distinct positive ids are required", nil))
		return
	}
	if s.opts.Resolver == nil {
		s.fail(w, r, services.Wrap(services.ErrConfiguration, "api", "teams", "resolver not configured", nil))
		return
	}

	ctx := services.WithStage(r.Context(), "teams")
	scores, result := s.opts.Resolver.PairScores(ctx, ids)
	pool := ids
	if len(result.Unknown) > 0 {
		pool = withoutIDs(ids, result.Unknown)
	}

	builder := s.opts.Builder
	builder.Logger = s.logger
	if req.Greedy {
		builder.Matcher = teams.GreedyMatcher{}
	}
	size := req.TeamSize
	if size <= 0 {
		size = s.opts.TeamSize
	}
	built := builder.Build(pool, size, req.MaxTeams, scores.Get)

	resp := TeamsResponse{
		BatchID: result.BatchID,
		Teams:   make([]Team, 0, len(built)),
		Unknown: result.Unknown,
	}
	for _, t := range built {
		resp.Teams = append(resp.Teams, FromTeam(t, s.opts.Entities))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// parseIDList accepts repeated or comma-separated values, e.g. ids=1,4&ids=7.
func parseIDList(values []string) ([]int, error) {
	var ids []int
	for _, value := range values {
		for _, field := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.Atoi(field)
			if err != nil || id <= 0 {
				return nil, services.Wrap(services.ErrValidation, "api", "parse ids", "invalid id "+strconv.Quote(field), nil)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, services.Wrap(services.ErrValidation, "api", "parse ids", "ids query parameter is required", nil)
	}
	return ids, nil
}

func withoutIDs(ids, drop []int) []int {
	skip := make(map[int]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err))
	} else {
		logger.Debug("api request rejected", logging.String("path", r.URL.Path), logging.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

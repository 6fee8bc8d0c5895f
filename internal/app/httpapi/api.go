// Package httpapi exposes the REST handlers and translates HTTP requests
// into survey service calls.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marcelojr/survey-votes/internal/app/survey"
	"github.com/marcelojr/survey-votes/internal/domain"
	"github.com/marcelojr/survey-votes/internal/platform/health"
	"github.com/marcelojr/survey-votes/internal/platform/metrics"
	"github.com/marcelojr/survey-votes/internal/platform/ratelimit"
)

// API bundles the HTTP handlers bound to the survey service.
type API struct {
	service  domain.SurveyService
	checker  *health.Checker
	logger   *slog.Logger
	database string
}

func New(service domain.SurveyService, checker *health.Checker, logger *slog.Logger, database string) *API {
	return &API{service: service, checker: checker, logger: logger, database: database}
}

func (a *API) Register(mux *http.ServeMux) {
	// Routes stay centralized so tests and alternate servers can reuse them.
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /api/test", a.handleTest)
	mux.HandleFunc("POST /api/votes", a.submitVote)
	mux.HandleFunc("GET /api/votes", a.listVotes)
	mux.HandleFunc("GET /api/votes/check/{username}", a.checkVote)
	mux.HandleFunc("DELETE /api/votes/user/{username}", a.clearUserVote)
	mux.HandleFunc("DELETE /api/votes/{id}", a.deleteVote)
	mux.HandleFunc("PUT /api/votes/{id}", a.updateVote)
	mux.HandleFunc("GET /api/options", a.listOptions)
	mux.HandleFunc("GET /api/statistics", a.getStatistics)
	mux.HandleFunc("GET /api/backup", a.downloadBackup)
	mux.HandleFunc("POST /api/restore", a.restoreBackup)
	mux.HandleFunc("GET /api/debug/options", a.debugOptions)
	mux.HandleFunc("DELETE /api/debug/clear", a.debugClear)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleTest(w http.ResponseWriter, r *http.Request) {
	if a.checker != nil {
		if err := a.checker.Ping(r.Context()); err != nil {
			a.logger.Warn("connectivity probe failed", "err", err)
			respondError(w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "vote store unreachable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "database connection ok",
		"database":  a.database,
		"timestamp": timestamp(),
	})
}

type submitRequest struct {
	Username        string   `json:"username"`
	SelectedOptions []string `json:"selectedOptions"`
}

type submitResponse struct {
	Success   bool          `json:"success"`
	ID        domain.VoteID `json:"id"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
}

func (a *API) submitVote(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveVoteRequest("invalid_payload")
		a.logger.Warn("invalid submit payload", "err", err)
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "username and selectedOptions are required")
		return
	}

	origin, agent := clientInfo(r)
	vote, err := a.service.Submit(r.Context(), req.Username, domain.OptionList(req.SelectedOptions), origin, agent)
	if err != nil {
		status := statusFromError(err)
		metrics.ObserveVoteRequest(metricStatus(err))
		a.logger.Warn("submit rejected", "err", err, "username", req.Username, "status", status)
		respondServiceError(w, err)
		return
	}

	metrics.ObserveVoteRequest("accepted")
	a.logger.Info("vote recorded", "id", vote.ID, "username", vote.Username)
	respondJSON(w, http.StatusOK, submitResponse{
		Success:   true,
		ID:        vote.ID,
		Message:   "vote submitted",
		Timestamp: timestamp(),
	})
}

type voteSummary struct {
	ID              domain.VoteID     `json:"id"`
	Username        string            `json:"username"`
	SelectedOptions domain.OptionList `json:"selectedOptions"`
	SubmitTime      time.Time         `json:"submitTime"`
}

type checkResponse struct {
	HasVoted bool         `json:"hasVoted"`
	Vote     *voteSummary `json:"vote,omitempty"`
}

func (a *API) checkVote(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	vote, found, err := a.service.HasVoted(r.Context(), username)
	if err != nil {
		a.logger.Error("check vote failed", "err", err, "username", username)
		respondServiceError(w, err)
		return
	}

	resp := checkResponse{HasVoted: found}
	if found {
		resp.Vote = &voteSummary{
			ID:              vote.ID,
			Username:        vote.Username,
			SelectedOptions: vote.SelectedOptions,
			SubmitTime:      vote.SubmitTime,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type optionJSON struct {
	ID    int64  `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

func (a *API) listOptions(w http.ResponseWriter, r *http.Request) {
	options, err := a.service.ActiveOptions(r.Context())
	if err != nil {
		a.logger.Error("list options failed", "err", err)
		respondServiceError(w, err)
		return
	}

	out := make([]optionJSON, len(options))
	for i, option := range options {
		out[i] = optionJSON{ID: option.ID, Text: option.Text, Order: option.Order}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"options":   out,
		"timestamp": timestamp(),
	})
}

func (a *API) getStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Statistics(r.Context())
	if err != nil {
		a.logger.Error("statistics failed", "err", err)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"totalVotes":   stats.TotalVotes,
		"voterCount":   stats.VoterCount,
		"optionCounts": stats.OptionCounts,
		"timestamp":    timestamp(),
	})
}

type voteJSON struct {
	ID              domain.VoteID     `json:"id"`
	Username        string            `json:"username"`
	SelectedOptions domain.OptionList `json:"selectedOptions"`
	SubmitTime      time.Time         `json:"submitTime"`
	IPAddress       string            `json:"ipAddress"`
	UserAgent       string            `json:"userAgent"`
	IsDeleted       bool              `json:"isDeleted"`
	CreateTime      time.Time         `json:"createTime"`
	UpdateTime      time.Time         `json:"updateTime"`
}

func toVoteJSON(v domain.Vote) voteJSON {
	return voteJSON{
		ID:              v.ID,
		Username:        v.Username,
		SelectedOptions: v.SelectedOptions,
		SubmitTime:      v.SubmitTime,
		IPAddress:       v.IPAddress,
		UserAgent:       v.UserAgent,
		IsDeleted:       v.IsDeleted,
		CreateTime:      v.CreateTime,
		UpdateTime:      v.UpdateTime,
	}
}

func (a *API) listVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := a.service.ListVotes(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.logger.Error("list votes failed", "err", err)
		respondServiceError(w, err)
		return
	}

	out := make([]voteJSON, len(votes))
	for i, vote := range votes {
		out[i] = toVoteJSON(vote)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"votes":     out,
		"total":     len(out),
		"timestamp": timestamp(),
	})
}

func (a *API) deleteVote(w http.ResponseWriter, r *http.Request) {
	id, err := parseVoteID(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "vote id must be an integer")
		return
	}

	if err := a.service.Delete(r.Context(), id); err != nil {
		a.logger.Warn("delete vote failed", "err", err, "id", id)
		respondServiceError(w, err)
		return
	}

	a.logger.Info("vote deleted", "id", id)
	respondMessage(w, "vote deleted")
}

func (a *API) clearUserVote(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	if err := a.service.ClearUser(r.Context(), username); err != nil {
		a.logger.Warn("clear vote failed", "err", err, "username", username)
		respondServiceError(w, err)
		return
	}

	a.logger.Info("vote cleared", "username", username)
	respondMessage(w, "vote data cleared")
}

type updateRequest struct {
	Username        string          `json:"username"`
	SelectedOptions json.RawMessage `json:"selectedOptions"`
}

func (a *API) updateVote(w http.ResponseWriter, r *http.Request) {
	id, err := parseVoteID(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "vote id must be an integer")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "username and selectedOptions are required")
		return
	}

	options, err := decodeOptions(req.SelectedOptions)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "selectedOptions is not a valid option list")
		return
	}

	if err := a.service.Update(r.Context(), id, req.Username, options); err != nil {
		a.logger.Warn("update vote failed", "err", err, "id", id)
		respondServiceError(w, err)
		return
	}

	a.logger.Info("vote updated", "id", id)
	respondMessage(w, "vote updated")
}

// backupVote is the snake_case row shape used by the backup/restore
// round-trip, distinct from the camelCase API shape.
type backupVote struct {
	ID              domain.VoteID  `json:"id"`
	Username        string         `json:"username"`
	SelectedOptions flexibleList   `json:"selected_options"`
	SubmitTime      time.Time      `json:"submit_time"`
	IPAddress       string         `json:"ip_address"`
	UserAgent       string         `json:"user_agent"`
	IsDeleted       flexibleBool   `json:"is_deleted"`
	CreateTime      time.Time      `json:"create_time"`
	UpdateTime      time.Time      `json:"update_time"`
}

type backupEnvelope struct {
	Timestamp string       `json:"timestamp"`
	Version   string       `json:"version"`
	Database  string       `json:"database"`
	Votes     []backupVote `json:"votes"`
}

func (a *API) downloadBackup(w http.ResponseWriter, r *http.Request) {
	votes, version, err := a.service.Backup(r.Context())
	if err != nil {
		a.logger.Error("backup failed", "err", err)
		respondServiceError(w, err)
		return
	}

	envelope := backupEnvelope{
		Timestamp: timestamp(),
		Version:   version,
		Database:  a.database,
		Votes:     make([]backupVote, len(votes)),
	}
	for i, vote := range votes {
		envelope.Votes[i] = backupVote{
			ID:              vote.ID,
			Username:        vote.Username,
			SelectedOptions: flexibleList(vote.SelectedOptions),
			SubmitTime:      vote.SubmitTime,
			IPAddress:       vote.IPAddress,
			UserAgent:       vote.UserAgent,
			IsDeleted:       flexibleBool(vote.IsDeleted),
			CreateTime:      vote.CreateTime,
			UpdateTime:      vote.UpdateTime,
		}
	}

	filename := fmt.Sprintf("backup_%s.json", time.Now().UTC().Format("2006-01-02T15-04-05"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(envelope)
}

type restoreRequest struct {
	Votes []backupVote `json:"votes"`
}

func (a *API) restoreBackup(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Votes == nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "backup payload must contain a votes array")
		return
	}

	votes := make([]domain.Vote, len(req.Votes))
	for i, row := range req.Votes {
		votes[i] = domain.Vote{
			ID:              row.ID,
			Username:        row.Username,
			SelectedOptions: domain.OptionList(row.SelectedOptions),
			SubmitTime:      row.SubmitTime,
			IPAddress:       row.IPAddress,
			UserAgent:       row.UserAgent,
			IsDeleted:       bool(row.IsDeleted),
			CreateTime:      row.CreateTime,
			UpdateTime:      row.UpdateTime,
		}
	}

	count, err := a.service.Restore(r.Context(), votes)
	if err != nil {
		a.logger.Error("restore failed", "err", err)
		respondServiceError(w, err)
		return
	}

	a.logger.Info("backup restored", "records", count)
	respondMessage(w, fmt.Sprintf("restored %d vote records", count))
}

func (a *API) debugOptions(w http.ResponseWriter, r *http.Request) {
	options, err := a.service.AllOptions(r.Context())
	if err != nil {
		a.logger.Error("debug options failed", "err", err)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"options":   options,
		"count":     len(options),
		"timestamp": timestamp(),
	})
}

func (a *API) debugClear(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearAll(r.Context()); err != nil {
		a.logger.Error("clear all failed", "err", err)
		respondServiceError(w, err)
		return
	}

	a.logger.Info("all vote data cleared")
	respondMessage(w, "all vote data cleared")
}

func clientInfo(r *http.Request) (origin, agent string) {
	origin = r.Header.Get("X-Forwarded-For")
	if origin == "" {
		origin = strings.Split(r.RemoteAddr, ":")[0]
	}
	return origin, r.UserAgent()
}

func parseVoteID(raw string) (domain.VoteID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid vote id %q", raw)
	}
	return domain.VoteID(id), nil
}

// decodeOptions accepts either a JSON string array or a plain delimited
// string; old admin clients submit the latter.
func decodeOptions(raw json.RawMessage) (domain.OptionList, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("selectedOptions missing")
	}

	var asArray []string
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return domain.OptionList(asArray), nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return domain.ParseOptionList(asString), nil
	}

	return nil, fmt.Errorf("selectedOptions is neither array nor string")
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   message,
		"timestamp": timestamp(),
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{
		"success":   false,
		"error":     code,
		"message":   message,
		"timestamp": timestamp(),
	})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, survey.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, domain.ErrDuplicateUsername):
		respondError(w, http.StatusConflict, "ALREADY_VOTED", "each user may vote only once")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "vote record not found")
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many submissions, slow down")
	default:
		// Anything unexpected is assumed to be storage trouble; it is
		// surfaced, never retried here.
		respondError(w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "vote store unavailable")
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, survey.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateUsername):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

func metricStatus(err error) string {
	switch {
	case errors.Is(err, survey.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrDuplicateUsername):
		return "conflict"
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		return "rate_limited"
	default:
		return "error"
	}
}

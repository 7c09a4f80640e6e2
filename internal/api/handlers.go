package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/scout"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
	maxUploadBytes  = 4 << 20
)

type searchRequest struct {
	Query     string   `json:"query"`
	Whitelist []string `json:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty"`
}

type scrapeRequest struct {
	URL   string `json:"url"`
	Query string `json:"query,omitempty"`
}

type bulkSearchRequest struct {
	Queries []struct {
		Query     string   `json:"query"`
		Whitelist []string `json:"whitelist,omitempty"`
		Blacklist []string `json:"blacklist,omitempty"`
	} `json:"queries"`
	GlobalListsEnabled bool     `json:"globalListsEnabled"`
	GlobalWhitelist    []string `json:"globalWhitelist,omitempty"`
	GlobalBlacklist    []string `json:"globalBlacklist,omitempty"`
}

type bulkScrapeRequest struct {
	URLs  []string `json:"urls"`
	Query string   `json:"query,omitempty"`
}

type listRequest struct {
	Domains []string `json:"domains"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	query := scout.Query{
		Text:      req.Query,
		Whitelist: req.Whitelist,
		Blacklist: req.Blacklist,
	}

	// async=true queues the query and returns immediately; the default runs
	// it inline and responds with the terminal record.
	if isTrue(r.URL.Query().Get("async")) {
		jobID, err := s.orch.SubmitSingle(r.Context(), query)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
		return
	}

	job, err := s.orch.RunSync(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func isTrue(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.orch.RunSync(r.Context(), scout.Query{
		URL:  req.URL,
		Text: req.Query,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) bulkSearch(w http.ResponseWriter, r *http.Request) {
	var req bulkSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	bulk := scout.BulkRequest{
		GlobalListsEnabled: req.GlobalListsEnabled,
		GlobalWhitelist:    req.GlobalWhitelist,
		GlobalBlacklist:    req.GlobalBlacklist,
	}
	for _, q := range req.Queries {
		bulk.Queries = append(bulk.Queries, scout.Query{
			Text:      q.Query,
			Whitelist: q.Whitelist,
			Blacklist: q.Blacklist,
		})
	}
	s.submitBulk(w, r, bulk)
}

func (s *Server) bulkScrape(w http.ResponseWriter, r *http.Request) {
	var req bulkScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	bulk := scout.BulkRequest{}
	for _, u := range req.URLs {
		bulk.Queries = append(bulk.Queries, scout.Query{URL: strings.TrimSpace(u), Text: req.Query})
	}
	s.submitBulk(w, r, bulk)
}

func (s *Server) submitBulk(w http.ResponseWriter, r *http.Request, bulk scout.BulkRequest) {
	jobID, err := s.orch.SubmitBulk(r.Context(), bulk)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) bulkSearchUpload(w http.ResponseWriter, r *http.Request) {
	records, err := readCSVUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bulk := scout.BulkRequest{}
	for _, row := range records {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		q := scout.Query{Text: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			q.Whitelist = splitDomains(row[1])
		}
		if len(row) > 2 {
			q.Blacklist = splitDomains(row[2])
		}
		bulk.Queries = append(bulk.Queries, q)
	}
	s.submitBulk(w, r, bulk)
}

func (s *Server) bulkScrapeUpload(w http.ResponseWriter, r *http.Request) {
	records, err := readCSVUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bulk := scout.BulkRequest{}
	for _, row := range records {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		bulk.Queries = append(bulk.Queries, scout.Query{URL: strings.TrimSpace(row[0])})
	}
	s.submitBulk(w, r, bulk)
}

func (s *Server) bulkSearchTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=bulk_search_template.csv")
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"query", "whitelist", "blacklist"})
	_ = cw.Write([]string{"example query", "domain1.com,domain2.com", "exclude1.com,exclude2.com"})
	cw.Flush()
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	// The in-memory record is authoritative while the batch is in flight;
	// the log store serves restarts and old jobs.
	job, ok := s.orch.Job(jobID)
	if !ok {
		var err error
		job, err = s.logs.Get(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, scout.ErrJobNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load job")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) getJobChildren(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	children, err := s.logs.ListChildren(r.Context(), jobID)
	if err != nil {
		s.logger.Error("list children failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	children = s.overlayLive(children)
	writeJSON(w, http.StatusOK, map[string]any{"jobs": children})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.orch.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, scout.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("cancel failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": string(scout.JobStatusCanceled)})
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultLogLimit, maxLogLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, total, err := s.logs.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list logs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	jobs = s.overlayLive(jobs)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// overlayLive merges fresher in-memory records over the stored page so
// polling clients see recomputed parent progress without waiting for the
// next persistence write.
func (s *Server) overlayLive(stored []scout.Job) []scout.Job {
	var live []scout.Job
	for _, job := range stored {
		if fresh, ok := s.orch.Job(job.ID); ok {
			live = append(live, fresh)
		}
	}
	if len(live) == 0 {
		return stored
	}
	return scout.MergeJobs(stored, live)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Get(r.Context())
	if err != nil {
		s.logger.Error("get settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var settings scout.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateSettings(settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.settings.Put(r.Context(), settings); err != nil {
		s.logger.Error("update settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func validateSettings(s scout.Settings) error {
	if s.MaxResultsPerQuery <= 0 {
		return errors.New("maxResultsPerQuery must be > 0")
	}
	if s.SearchResultsLimit <= 0 {
		return errors.New("searchResultsLimit must be > 0")
	}
	if s.ScrapeLimit <= 0 {
		return errors.New("scrapeLimit must be > 0")
	}
	if s.MinScoreThreshold < 0 || s.MinScoreThreshold > 1 {
		return errors.New("minScoreThreshold must be within [0, 1]")
	}
	return nil
}

func (s *Server) getWhitelist(w http.ResponseWriter, r *http.Request) {
	s.readList(w, r, s.lists.GetWhitelist)
}

func (s *Server) getBlacklist(w http.ResponseWriter, r *http.Request) {
	s.readList(w, r, s.lists.GetBlacklist)
}

func (s *Server) updateWhitelist(w http.ResponseWriter, r *http.Request) {
	s.writeList(w, r, s.lists.PutWhitelist, s.lists.GetWhitelist)
}

func (s *Server) updateBlacklist(w http.ResponseWriter, r *http.Request) {
	s.writeList(w, r, s.lists.PutBlacklist, s.lists.GetBlacklist)
}

func (s *Server) readList(
	w http.ResponseWriter,
	r *http.Request,
	get func(ctx context.Context) ([]string, error),
) {
	domains, err := get(r.Context())
	if err != nil {
		s.logger.Error("get list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load list")
		return
	}
	writeJSON(w, http.StatusOK, listRequest{Domains: domains})
}

func (s *Server) writeList(
	w http.ResponseWriter,
	r *http.Request,
	put func(ctx context.Context, domains []string) error,
	get func(ctx context.Context) ([]string, error),
) {
	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	cleaned := make([]string, 0, len(req.Domains))
	for _, d := range req.Domains {
		if trimmed := strings.TrimSpace(d); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if err := put(r.Context(), cleaned); err != nil {
		s.logger.Error("update list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store list")
		return
	}
	domains, err := get(r.Context())
	if err != nil {
		s.logger.Error("reload list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to reload list")
		return
	}
	writeJSON(w, http.StatusOK, listRequest{Domains: domains})
}

// readCSVUpload accepts either a multipart "file" field or a raw CSV body and
// returns the data rows with the header stripped.
func readCSVUpload(r *http.Request) ([][]string, error) {
	var src io.Reader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("missing file field")
		}
		defer file.Close()
		src = file
	} else {
		src = r.Body
	}

	reader := csv.NewReader(io.LimitReader(src, maxUploadBytes))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("csv must contain a header and at least one row")
	}
	return records[1:], nil
}

func splitDomains(cell string) []string {
	parts := strings.Split(cell, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

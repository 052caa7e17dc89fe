package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daylog/backend/internal/capture"
	"github.com/daylog/backend/internal/journal"
	"github.com/daylog/backend/internal/logging"
	"github.com/daylog/backend/internal/models"
	"github.com/daylog/backend/internal/repositories"
)

// maxUploadBytes bounds a single clip upload. Clips are short selfie
// videos; anything larger is a client bug.
const maxUploadBytes = 256 << 20

// LogHandler implements the journaling endpoints.
type LogHandler struct {
	Sessions      SessionManager
	Journals      JournalRegistry
	Resolver      MediaResolver
	UploadLimiter RateLimiter
	NowFunc       func() time.Time
}

type logEntryResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Date      string `json:"date"`
	Timestamp int64  `json:"timestamp"`
	MediaURL  string `json:"mediaUrl"`
}

type dateGroupResponse struct {
	Date    string             `json:"date"`
	Entries []logEntryResponse `json:"entries"`
}

// List handles GET /api/v1/logs. The collection is refreshed from the
// store before serving so the response never trails a recent submit from
// another device. An optional type filter narrows the listing and
// grouped=1 returns entries bucketed per day.
func (h LogHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	jrnl, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := jrnl.Refresh(ctx); err != nil {
		logger.Error("refresh log collection", "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "unable to load journal"})
		return
	}

	entries := jrnl.Snapshot()

	filter := strings.TrimSpace(r.URL.Query().Get("type"))
	if filter != "" && filter != journal.FilterAll {
		if !models.LogType(filter).Valid() {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unknown log type"})
			return
		}
		entries = journal.FilterByType(entries, filter)
	}

	if r.URL.Query().Get("grouped") == "1" {
		groups := journal.GroupByDate(entries)
		payload := make([]dateGroupResponse, 0, len(groups))
		for _, group := range groups {
			payload = append(payload, dateGroupResponse{
				Date:    group.Date,
				Entries: h.renderEntries(r, group.Entries),
			})
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"days": payload})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"logs": h.renderEntries(r, entries)})
}

// Create handles POST /api/v1/logs multipart uploads. The video part
// carries the finished clip; type and date fields describe the session.
func (h LogHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.UploadLimiter, r, "logs:create") {
		logger.Warn("upload rate limited", "remote", r.RemoteAddr)
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many uploads, slow down"})
		return
	}

	jrnl, ok := h.authorize(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("invalid multipart upload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	logType := models.LogType(strings.TrimSpace(r.FormValue("type")))
	if !logType.Valid() {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "type must be morning or night"})
		return
	}

	dateStr := strings.TrimSpace(r.FormValue("date"))
	if dateStr == "" {
		dateStr = h.now().Format("2006-01-02")
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		logger.Warn("upload missing video part", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "video file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("read video part", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unable to read video"})
		return
	}
	if len(data) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "video file is empty"})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = capture.DefaultMIME
	}

	ctx, span := logging.StartSpan(ctx, "logs.submit")
	defer span.End()

	entry, err := jrnl.Submit(ctx, capture.Blob{Data: data, MIME: mimeType}, logType, dateStr)
	if err != nil {
		switch {
		case errors.Is(err, journal.ErrUnauthenticated):
			respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		case errors.Is(err, journal.ErrSubmitInFlight):
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "another upload is already in progress"})
		case errors.Is(err, journal.ErrSyncFailed):
			logger.Error("submit log entry", "error", err)
			respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "unable to save log"})
		default:
			logger.Warn("rejected log submission", "error", err)
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"log": h.renderEntry(r, entry)})
}

// Delete handles POST /api/v1/logs/delete requests.
func (h LogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	jrnl, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid delete payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "log id is required"})
		return
	}

	if err := jrnl.Remove(ctx, req.ID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "log not found"})
		case errors.Is(err, journal.ErrUnauthenticated):
			respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		default:
			logger.Error("delete log entry", "id", req.ID, "error", err)
			respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "unable to delete log"})
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Calendar handles GET /api/v1/logs/calendar?year=&month= requests,
// returning per-day morning and night markers for the requested month.
func (h LogHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	jrnl, ok := h.authorize(w, r)
	if !ok {
		return
	}

	now := h.now()
	year, month := now.Year(), int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
			return
		}
		year = parsed
	}
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 12 {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid month"})
			return
		}
		month = parsed
	}

	if err := jrnl.Refresh(ctx); err != nil {
		logger.Error("refresh log collection", "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "unable to load journal"})
		return
	}

	markers := journal.MonthMarkers(jrnl.Snapshot(), year, time.Month(month))
	days := make(map[string]models.DailyStatus, len(markers))
	for day, status := range markers {
		days[strconv.Itoa(day)] = status
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"year":  year,
		"month": month,
		"days":  days,
	})
}

// Stats handles GET /api/v1/logs/stats requests.
func (h LogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	jrnl, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := jrnl.Refresh(ctx); err != nil {
		logger.Error("refresh log collection", "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "unable to load journal"})
		return
	}

	stats := journal.Stats(jrnl.Snapshot(), h.now())
	respondJSON(ctx, w, http.StatusOK, map[string]int{
		"streak":          stats.Streak,
		"videosThisMonth": stats.VideosThisMonth,
	})
}

// authorize resolves the bearer token to the caller's journal. On failure
// it writes the error response and returns ok=false.
func (h LogHandler) authorize(w http.ResponseWriter, r *http.Request) (Journal, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil || h.Journals == nil {
		logger.Error("journal dependencies unavailable", "hasSessions", h.Sessions != nil, "hasJournals", h.Journals != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "journal services unavailable"})
		return nil, false
	}

	token := bearerToken(r)
	if token == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		return nil, false
	}

	ownerID, err := h.Sessions.Authenticate(ctx, token)
	if err != nil {
		logger.Warn("rejected bearer token", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
		return nil, false
	}

	return h.Journals.For(ownerID), true
}

func (h LogHandler) renderEntries(r *http.Request, entries []models.LogEntry) []logEntryResponse {
	out := make([]logEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, h.renderEntry(r, entry))
	}
	return out
}

func (h LogHandler) renderEntry(r *http.Request, entry models.LogEntry) logEntryResponse {
	mediaURL := entry.MediaRef
	if h.Resolver != nil {
		resolved, err := h.Resolver.Resolve(r.Context(), entry.MediaRef)
		if err != nil {
			logging.FromContext(r.Context()).Warn("resolve media locator", "id", entry.ID, "error", err)
		} else {
			mediaURL = resolved
		}
	}

	return logEntryResponse{
		ID:        entry.ID,
		Type:      string(entry.Type),
		Date:      entry.DateStr,
		Timestamp: entry.Timestamp,
		MediaURL:  mediaURL,
	}
}

func (h LogHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

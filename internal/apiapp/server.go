package apiapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phillip-england/punchaudit/internal/attendance"
	"github.com/phillip-england/punchaudit/internal/middleware"
	"github.com/phillip-england/punchaudit/internal/security"
	"github.com/phillip-england/punchaudit/internal/workbook"
	"go.uber.org/zap"
)

const (
	sessionCookieName = "punchaudit_session"
	uploadFieldName   = "attendance_file"

	// processFailedMessage is the only failure text shown for an upload.
	processFailedMessage = "處理失敗：請檢查 Excel 格式與標題。"
)

var (
	errNoUpload        = errors.New("no upload in this session")
	errUnsupportedFile = errors.New("unsupported file type")
	errMissingFile     = errors.New("attendance file is required")
	errNoRows          = errors.New("no attendance rows to export")
)

var allowedExtensions = map[string]struct{}{
	".xlsx": {},
	".xlsm": {},
	".xls":  {},
}

type server struct {
	cfg      Config
	logger   *zap.Logger
	sessions *sessionStore
	creds    *security.Credentials
}

type previewRow struct {
	Values   map[string]string `json:"values"`
	Modified []string          `json:"modified"`
	Changed  bool              `json:"changed"`
	Friday   bool              `json:"friday"`
}

type previewResponse struct {
	UploadID   string             `json:"uploadId"`
	FileName   string             `json:"fileName"`
	OutputName string             `json:"outputName"`
	Headers    []string           `json:"headers"`
	Dropped    int                `json:"dropped"`
	Summary    attendance.Summary `json:"summary"`
	Rows       []previewRow       `json:"rows"`
}

func newServer(cfg Config, logger *zap.Logger) (*server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{
		cfg:      cfg,
		logger:   logger,
		sessions: newSessionStore(cfg.SessionTTL),
	}
	if cfg.authEnabled() {
		creds, err := security.NewCredentials(cfg.AuthUsername, cfg.AuthPassword)
		if err != nil {
			return nil, fmt.Errorf("auth credentials: %w", err)
		}
		s.creds = creds
	}
	return s, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/health", http.HandlerFunc(s.health))
	mux.Handle("/api/attendance/upload", middleware.Chain(http.HandlerFunc(s.uploadHandler), s.requireAuth))
	mux.Handle("/api/attendance/preview", middleware.Chain(http.HandlerFunc(s.preview), s.requireAuth))
	mux.Handle("/api/attendance/export", middleware.Chain(http.HandlerFunc(s.export), s.requireAuth))
	mux.Handle("/api/attendance/process", middleware.Chain(http.HandlerFunc(s.process), s.requireAuth))

	return middleware.Chain(
		mux,
		middleware.RequestLogger(s.logger),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'"}),
	)
}

func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("api listening",
		zap.String("addr", cfg.Addr),
		zap.Bool("auth", s.creds != nil),
		zap.Int64("maxUploadBytes", cfg.MaxUploadBytes),
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.upload(w, r)
	case http.MethodDelete:
		s.reset(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	u, err := s.processUpload(w, r)
	if err != nil {
		// A failed re-upload must not leave the earlier result exportable.
		if sessionID, ok := sessionFromRequest(r); ok {
			s.sessions.delete(sessionID)
		}
		s.writeUploadError(w, err)
		return
	}

	sessionID := s.ensureSession(w, r)
	s.sessions.put(sessionID, u)
	summary := attendance.Summarize(u.Results)
	s.logger.Info("attendance processed",
		zap.String("upload", u.ID),
		zap.String("file", u.FileName),
		zap.Int("rows", summary.Rows),
		zap.Int("dropped", u.Dropped),
		zap.Int("changed", summary.ChangedRows),
	)
	writeJSON(w, http.StatusOK, buildPreview(u))
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(r)
	if !ok || !s.sessions.delete(sessionID) {
		writeError(w, http.StatusNotFound, errNoUpload.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "upload discarded"})
}

func (s *server) preview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, ok := s.currentUpload(r)
	if !ok {
		writeError(w, http.StatusNotFound, errNoUpload.Error())
		return
	}
	writeJSON(w, http.StatusOK, buildPreview(u))
}

func (s *server) export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, ok := s.currentUpload(r)
	if !ok {
		writeError(w, http.StatusNotFound, errNoUpload.Error())
		return
	}
	s.writeWorkbook(w, u)
}

// process is the one-shot path: upload in, annotated workbook out, nothing kept.
func (s *server) process(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, err := s.processUpload(w, r)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	s.writeWorkbook(w, u)
}

func (s *server) processUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("parse upload form: %w", err)
	}
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		return nil, errMissingFile
	}
	defer file.Close()

	fileName := filepath.Base(strings.TrimSpace(header.Filename))
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(fileName))]; !ok {
		return nil, errUnsupportedFile
	}

	sheet, err := workbook.Read(file, fileName)
	if err != nil {
		return nil, err
	}
	results, err := attendance.ProcessConcurrent(r.Context(), sheet.Rows, s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("process rows: %w", err)
	}
	return &upload{
		ID:       uuid.NewString(),
		FileName: fileName,
		Headers:  workbook.ExportHeaders(sheet.Headers),
		Results:  results,
		Dropped:  sheet.Dropped,
	}, nil
}

func (s *server) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errMissingFile), errors.Is(err, errUnsupportedFile):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Warn("attendance upload failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, processFailedMessage)
	}
}

func (s *server) writeWorkbook(w http.ResponseWriter, u *upload) {
	if len(u.Results) == 0 {
		writeError(w, http.StatusUnprocessableEntity, errNoRows.Error())
		return
	}
	var buf bytes.Buffer
	if err := workbook.Write(&buf, u.Headers, u.Results); err != nil {
		s.logger.Error("attendance export failed", zap.String("upload", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "unable to build export")
		return
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": workbook.OutputName(u.FileName)})
	w.Header().Set("Content-Type", workbook.ContentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) currentUpload(r *http.Request) (*upload, bool) {
	sessionID, ok := sessionFromRequest(r)
	if !ok {
		return nil, false
	}
	return s.sessions.get(sessionID)
}

func (s *server) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if id, ok := sessionFromRequest(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
	})
	return id
}

func sessionFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return "", false
	}
	return cookie.Value, true
}

func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.creds == nil {
			next.ServeHTTP(w, r)
			return
		}
		username, password, ok := r.BasicAuth()
		if !ok || !s.creds.Verify(username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="punchaudit"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func buildPreview(u *upload) previewResponse {
	rows := make([]previewRow, len(u.Results))
	for i, res := range u.Results {
		values := make(map[string]string, len(u.Headers))
		for _, h := range u.Headers {
			values[h] = displayValue(h, res.Row[h])
		}
		rows[i] = previewRow{
			Values:   values,
			Modified: res.Modified.Sorted(),
			Changed:  res.Changed(),
			Friday:   res.Row.Get(attendance.FieldFriday) == attendance.Marker,
		}
	}
	return previewResponse{
		UploadID:   u.ID,
		FileName:   u.FileName,
		OutputName: workbook.OutputName(u.FileName),
		Headers:    u.Headers,
		Dropped:    u.Dropped,
		Summary:    attendance.Summarize(u.Results),
		Rows:       rows,
	}
}

func displayValue(header string, v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		switch {
		case header == string(attendance.FieldAttendanceDate):
			return val.Format("2006/01/02")
		case val.Year() < 1900:
			return val.Format("15:04")
		default:
			return val.Format("2006/01/02 15:04")
		}
	default:
		return fmt.Sprint(val)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

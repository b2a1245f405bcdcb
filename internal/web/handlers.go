package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tbcheck/internal/core"
	"github.com/JonMunkholm/tbcheck/internal/report"
	"github.com/JonMunkholm/tbcheck/internal/rules"
	"github.com/JonMunkholm/tbcheck/internal/web/templates"
)

// multipartMemory is how much of a multipart form is held in memory; the
// rest spills to the standard library's temporary files, which it removes.
const multipartMemory = 32 << 20

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	params := templates.PageParams{
		Modes:       []string{string(rules.ModeFixedName), string(rules.ModeDiscoverAll), string(rules.ModeAllowList)},
		DefaultMode: s.cfg.Rules.Mode,
		MaxFileMB:   s.cfg.Upload.MaxFileSize >> 20,
		Allowed:     append(append([]string(nil), rules.DefaultAllowedImports...), s.cfg.Rules.ExtraImports...),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Page(params).Render(r.Context(), w); err != nil {
		slog.Error("render page", "error", err)
	}
}

// handleHealth reports liveness and run capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"runs":   s.service.LimiterStatus(),
	})
}

// handleInspect lists the sheets of an uploaded data file with previews.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	name, data, err := readFormFile(r, "data", s.cfg.Upload.MaxFileSize)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	in, err := s.service.Inspect(r.Context(), name, data)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		render(w, r, templates.Inspection(in))
		return
	}
	writeJSON(w, in)
}

// handleRulesInspect lists the entries an uploaded rule file would run.
// Without a file it describes the built-in rules.
func (s *Server) handleRulesInspect(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	name, src, err := readFormFile(r, "rules", s.cfg.Upload.MaxRulesSize)
	if err != nil && !errors.Is(err, core.ErrNoFile) {
		respondError(w, r, err, statusFor(err))
		return
	}

	info, err := s.service.ListRules(r.Context(), name, src, r.FormValue("mode"), parseList(r.FormValue("allow")))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		render(w, r, templates.Rules(info))
		return
	}
	writeJSON(w, info)
}

// handleDefaultRules serves the built-in rule source as a starting point.
func (s *Server) handleDefaultRules(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/x-go; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="check_rules.go"`)
	_, _ = w.Write(s.service.DefaultRules())
}

// handleRun performs a complete check.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	dataName, data, err := readFormFile(r, "data", s.cfg.Upload.MaxFileSize)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	rulesName, src, err := readFormFile(r, "rules", s.cfg.Upload.MaxRulesSize)
	if err != nil && !errors.Is(err, core.ErrNoFile) {
		respondError(w, r, err, statusFor(err))
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	res, err := s.service.Run(ctx, core.RunRequest{
		DataName:  dataName,
		Data:      data,
		RulesName: rulesName,
		Rules:     src,
		Sheet:     r.FormValue("sheet"),
		Mode:      r.FormValue("mode"),
		Allow:     parseList(r.FormValue("allow")),
	})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		render(w, r, templates.RunReport(res))
		return
	}
	writeJSON(w, res)
}

// handleDownload serves a run's result workbook.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.Artifact(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(a.Data)
}

// handleHistory lists recent runs.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.History(r.Context(), parseIntParam(r, "limit", 20))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	if isHTMX(r) {
		render(w, r, templates.History(runs))
		return
	}
	writeJSON(w, runs)
}

// parseForm bounds the request body and parses the multipart form.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	limit := s.cfg.Upload.MaxFileSize + s.cfg.Upload.MaxRulesSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("invalid form: %w", err)
	}
	return nil
}

// readFormFile reads one uploaded file. A missing or empty field returns
// core.ErrNoFile.
func readFormFile(r *http.Request, field string, max int64) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, core.ErrNoFile
		}
		return "", nil, err
	}
	defer file.Close()

	if header.Size == 0 {
		return header.Filename, nil, core.ErrNoFile
	}
	if max > 0 && header.Size > max {
		return "", nil, fmt.Errorf("%w: %s is %d bytes, limit %d", core.ErrFileTooLarge, header.Filename, header.Size, max)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", field, err)
	}
	return header.Filename, data, nil
}

// parseList splits a comma-separated form value, dropping blanks.
func parseList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// writeJSON encodes v as JSON. Encoding errors are only logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// render writes an HTML fragment.
func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render fragment", "error", err, "path", r.URL.Path)
	}
}

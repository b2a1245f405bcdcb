package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/tbcheck/internal/check"
	"github.com/JonMunkholm/tbcheck/internal/config"
	"github.com/JonMunkholm/tbcheck/internal/ingest"
	"github.com/JonMunkholm/tbcheck/internal/logging"
	"github.com/JonMunkholm/tbcheck/internal/report"
	"github.com/JonMunkholm/tbcheck/internal/rules"
	"github.com/JonMunkholm/tbcheck/internal/store"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when a run has no data file.
	ErrNoFile = errors.New("no file provided")

	// ErrUnknownMode is returned for a discovery mode that does not exist.
	ErrUnknownMode = errors.New("unknown discovery mode")
)

// inspectWorkers bounds how many sheets are previewed at once.
const inspectWorkers = 4

// Service runs data checks. It is safe for concurrent use; each run is
// independent and shares nothing with other runs except the limiter, the
// artifact cache and the history store.
type Service struct {
	cfg       *config.Config
	loader    *rules.Loader
	executor  *check.Executor
	limiter   *RunLimiter
	artifacts *ArtifactCache
	history   store.Store
}

// NewService creates a Service. A nil history store keeps history in memory.
func NewService(cfg *config.Config, history store.Store) (*Service, error) {
	mode, err := rules.ParseMode(cfg.Rules.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, err)
	}

	allowed := append([]string(nil), rules.DefaultAllowedImports...)
	allowed = append(allowed, cfg.Rules.ExtraImports...)

	if history == nil {
		history = store.NewMemory(cfg.History.MemoryLimit)
	}

	return &Service{
		cfg: cfg,
		loader: rules.NewLoader(rules.Options{
			Mode:           mode,
			EntryPoints:    cfg.Rules.EntryPoints,
			Allow:          cfg.Rules.Allow,
			AllowedImports: allowed,
			MaxSourceSize:  cfg.Upload.MaxRulesSize,
			LoadTimeout:    cfg.Rules.Timeout,
		}),
		executor:  check.NewExecutor(cfg.Rules.Timeout),
		limiter:   NewRunLimiter(cfg.Run.MaxConcurrent, cfg.Run.MaxWaitTime),
		artifacts: NewArtifactCache(cfg.Run.ArtifactTTL),
		history:   history,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Inspect parses a data file and previews every sheet.
func (s *Service) Inspect(ctx context.Context, fileName string, data []byte) (*Inspection, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}

	src, err := ingest.OpenNamed(fileName, data)
	if err != nil {
		logging.FromContext(ctx).Warn("inspect failed", "file", fileName, "error", err)
		return nil, err
	}

	names := src.SheetNames()
	in := &Inspection{FileName: fileName, Kind: string(src.Kind), Sheets: make([]SheetPreview, len(names))}

	// Sheets are independent of each other.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inspectWorkers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := src.Table(name)
			if err != nil {
				return err
			}
			head := ingest.Preview(t, s.cfg.Upload.PreviewRows)
			in.Sheets[i] = SheetPreview{
				Name:     name,
				Columns:  head.Columns(),
				Rows:     report.FormatRows(head),
				RowCount: t.Len(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, want := range s.cfg.Upload.ExpectedSheets {
		if !slices.Contains(names, want) {
			in.Missing = append(in.Missing, want)
		}
	}
	if len(in.Missing) > 0 {
		logging.FromContext(ctx).Info("expected sheets missing", "file", fileName, "missing", in.Missing)
	}
	return in, nil
}

// ListRules loads a rule source and reports the entries it would run.
// An empty source describes the built-in default.
func (s *Service) ListRules(ctx context.Context, name string, src []byte, mode string, allow []string) (*RulesInfo, error) {
	loader, err := s.loaderFor(mode, allow)
	if err != nil {
		return nil, err
	}
	rs, err := loader.Load(ctx, name, src)
	if err != nil {
		return nil, err
	}
	return &RulesInfo{Origin: rs.Origin, Mode: string(rs.Mode), Entries: rs.Names()}, nil
}

// DefaultRules returns the built-in rule source.
func (s *Service) DefaultRules() []byte {
	return rules.BuiltinSource()
}

// Run performs one complete check: load the data, load the rules, execute
// every entry, render the report and build the workbook.
// Errors returned are fatal for the run; rule failures are reported inside
// the result.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if len(req.Data) == 0 && req.DataName == "" {
		return nil, ErrNoFile
	}
	if err := s.checkSize(req.Data); err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	id := uuid.NewString()
	ctx = logging.WithRun(ctx, id)
	logger := logging.FromContext(ctx)
	start := time.Now()

	rulesName := req.RulesName
	if len(req.Rules) == 0 {
		rulesName = rules.BuiltinOrigin
	}
	summary := store.RunSummary{
		ID:        id,
		StartedAt: start.UTC(),
		DataFile:  req.DataName,
		RulesFile: rulesName,
		Sheet:     req.Sheet,
		Mode:      req.Mode,
	}

	logger.Info("run started",
		"data", req.DataName,
		"rules", rulesName,
		"sheet", req.Sheet,
		"client_ip", GetIPAddressFromContext(ctx),
		"user_agent", GetUserAgentFromContext(ctx),
	)

	res, err := s.run(ctx, id, req, &summary)
	summary.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		summary.Error = MapError(err).Code + ": " + err.Error()
		logger.Warn("run aborted", "error", err, "duration_ms", summary.DurationMS)
	} else {
		res.Duration = time.Since(start)
		res.DurationMS = summary.DurationMS
		logger.Info("run finished",
			"passed", res.Report.Passed,
			"failed", res.Report.Failed,
			"errors", res.Report.Errors,
			"sheets", summary.Sheets,
			"duration_ms", summary.DurationMS,
		)
	}

	// History must not fail the run, nor be skipped when the client leaves.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if herr := s.history.Record(recordCtx, summary); herr != nil {
		logger.Error("failed to record run history", "error", herr)
	}

	return res, err
}

func (s *Service) run(ctx context.Context, id string, req RunRequest, summary *store.RunSummary) (*RunResult, error) {
	src, err := ingest.OpenNamed(req.DataName, req.Data)
	if err != nil {
		return nil, err
	}
	if req.Sheet == "" {
		req.Sheet = src.DefaultSheet()
		summary.Sheet = req.Sheet
	}
	t, err := src.Table(req.Sheet)
	if err != nil {
		return nil, err
	}

	loader, err := s.loaderFor(req.Mode, req.Allow)
	if err != nil {
		return nil, err
	}
	summary.Mode = string(loader.Mode())

	rs, err := loader.Load(ctx, req.RulesName, req.Rules)
	if err != nil {
		return nil, err
	}
	summary.RulesFile = rs.Origin

	results := s.executor.Execute(ctx, t, rs)
	summary.Entries = entryStatuses(results)

	res := &RunResult{
		ID:          id,
		DataFile:    req.DataName,
		Sheet:       req.Sheet,
		RulesOrigin: rs.Origin,
		Mode:        string(rs.Mode),
		Entries:     rs.Names(),
		Rows:        t.Len(),
		Report:      report.Render(results, report.Options{MaxRows: s.cfg.Run.ResultRows, Input: t}),
		Output:      rs.Output(),
	}

	wb := report.BuildWorkbook(results)
	summary.Sheets = wb.Len()
	if wb.Len() == 0 {
		return res, nil
	}

	data, err := wb.Bytes()
	if err != nil {
		logging.FromContext(ctx).Error("workbook export failed", "error", err)
		msg := MapError(err)
		res.ExportError = err
		res.Export = &msg
		return res, nil
	}

	a := s.artifacts.Put(id, report.FileName, data, wb.SheetNames())
	res.Download = &Download{
		FileName:  a.FileName,
		Sheets:    a.Sheets,
		Size:      len(a.Data),
		ExpiresAt: a.ExpiresAt,
	}
	return res, nil
}

// Artifact returns the workbook of a finished run.
func (s *Service) Artifact(runID string) (*Artifact, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, ErrArtifactNotFound
	}
	return s.artifacts.Get(runID)
}

// History returns up to limit recent run summaries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]store.RunSummary, error) {
	return s.history.Recent(ctx, limit)
}

// LimiterStatus reports the run limiter state.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until active runs finish or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// loaderFor returns the loader for a per-request mode, falling back to the
// configured one.
func (s *Service) loaderFor(mode string, allow []string) (*rules.Loader, error) {
	if mode == "" && len(allow) == 0 {
		return s.loader, nil
	}
	m := s.loader.Mode()
	if mode != "" {
		parsed, err := rules.ParseMode(mode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownMode, err)
		}
		m = parsed
	}
	if m == rules.ModeAllowList && len(allow) == 0 && len(s.cfg.Rules.Allow) == 0 {
		return nil, fmt.Errorf("%w: allow-list mode needs at least one rule name", ErrUnknownMode)
	}
	return s.loader.WithMode(m, allow), nil
}

func (s *Service) checkSize(data []byte) error {
	if max := s.cfg.Upload.MaxFileSize; max > 0 && int64(len(data)) > max {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), max)
	}
	return nil
}

// entryStatuses summarises results for the history store.
func entryStatuses(results *check.Results) []store.EntryStatus {
	var out []store.EntryStatus
	for _, r := range results.All() {
		st := store.EntryStatus{Name: r.Entry, Kind: r.Kind.String(), Failed: r.Failed()}
		switch r.Kind {
		case check.KindTable:
			st.Rows = r.Table.Len()
		case check.KindMapping:
			for _, t := range r.Mapping {
				st.Rows += t.Len()
			}
		}
		out = append(out, st)
	}
	return out
}

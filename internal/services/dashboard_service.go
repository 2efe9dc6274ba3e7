package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sosidash/internal/analytics"
	"sosidash/internal/config"
	"sosidash/internal/dataset"
	"sosidash/internal/exporter"
	"sosidash/internal/infrastructure"
)

// Status filter values accepted by Languages.
const (
	FilterSourceable    = "sourceable"
	FilterNotSourceable = "not_sourceable"
)

// session is one dashboard session: the loaded tables plus the report
// describing how they loaded. Stores are immutable and may be shared
// between sessions with identical upload fingerprints.
type session struct {
	ID        string
	CreatedAt time.Time
	Store     *dataset.Store
	Report    *dataset.LoadReport
}

// SessionInfo is the API-facing description of a session.
type SessionInfo struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Report    *dataset.LoadReport `json:"report"`
}

// TrendsResponse bundles the time-based and categorical distributions.
// Monthly, day-of-week and priority series come from the master table;
// status and location distributions come from the analysis table.
type TrendsResponse struct {
	Monthly   []analytics.VolumePoint   `json:"monthly"`
	DayOfWeek []analytics.VolumePoint   `json:"day_of_week"`
	Priority  []analytics.PrioritySlice `json:"priority"`
	Status    []analytics.StatusSlice   `json:"status"`
	Locations []analytics.LocationStat  `json:"locations"`
}

// DashboardService owns per-session dashboard state: uploads, derived
// statistics, search and export. All state lives in memory; sessions
// are independent of each other.
type DashboardService struct {
	config   *config.Config
	logger   *slog.Logger
	loader   *dataset.Loader
	agg      *analytics.Aggregator
	gaps     *analytics.GapAnalyzer
	csv      *exporter.CSVWriter
	metrics  *infrastructure.BusinessMetrics
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewDashboardService creates a dashboard service using the default logger
func NewDashboardService(cfg *config.Config) *DashboardService {
	return NewDashboardServiceWithLogger(cfg, slog.Default())
}

// NewDashboardServiceWithLogger creates a dashboard service with a specific logger
func NewDashboardServiceWithLogger(cfg *config.Config, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}

	gapCfg := analytics.GapConfig{
		MinUnfulfilled:    cfg.Gaps.MinUnfulfilled,
		CriticalThreshold: cfg.Gaps.CriticalThreshold,
		HighThreshold:     cfg.Gaps.HighThreshold,
		MediumThreshold:   cfg.Gaps.MediumThreshold,
	}

	return &DashboardService{
		config:   cfg,
		logger:   logger.With(slog.String("component", "dashboard_service")),
		loader:   dataset.NewLoader(logger),
		agg:      analytics.NewAggregator(logger),
		gaps:     analytics.NewGapAnalyzer(logger, gapCfg),
		csv:      exporter.NewCSVWriter(logger),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// SetMetrics attaches business metrics. Safe to skip in tests.
func (s *DashboardService) SetMetrics(m *infrastructure.BusinessMetrics) {
	s.metrics = m
}

// CreateSession loads the uploaded workbooks into a new session.
// When another session already holds a store for the same upload
// fingerprint, the store is reused and the report marks the result as
// served from cache.
func (s *DashboardService) CreateSession(ctx context.Context, in dataset.Inputs) (*SessionInfo, error) {
	if in.Empty() {
		return nil, ErrNoFilesProvided
	}

	start := s.now()
	fingerprint := dataset.Fingerprint(in)

	sess := &session{
		ID:        uuid.New().String(),
		CreatedAt: s.now(),
	}

	if store, report := s.cachedStore(fingerprint); store != nil {
		sess.Store = store
		sess.Report = report
		if s.metrics != nil {
			s.metrics.CacheHits.Add(ctx, 1)
		}
		s.logger.InfoContext(ctx, "session reusing cached dataset",
			slog.String("session_id", sess.ID),
			slog.String("fingerprint", fingerprint))
	} else {
		store, report, err := s.loader.Load(ctx, in)
		if err != nil {
			infrastructure.RecordError(ctx, err)
			s.recordUpload(ctx, in, time.Since(start), err)
			return nil, err
		}
		sess.Store = store
		sess.Report = report
		if s.metrics != nil {
			s.metrics.CacheMisses.Add(ctx, 1)
		}
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	infrastructure.RecordSessionChange(ctx, s.metrics, 1)
	s.recordUpload(ctx, in, time.Since(start), nil)

	s.logger.InfoContext(ctx, "session created",
		slog.String("session_id", sess.ID),
		slog.Any("tables", sess.Report.Tables),
		slog.Bool("from_cache", sess.Report.FromCache),
		slog.Duration("duration", time.Since(start)))

	return &SessionInfo{ID: sess.ID, CreatedAt: sess.CreatedAt, Report: sess.Report}, nil
}

// cachedStore finds an existing store with the given fingerprint. The
// returned report is a copy with FromCache set.
func (s *DashboardService) cachedStore(fingerprint string) (*dataset.Store, *dataset.LoadReport) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.Store.Fingerprint() == fingerprint {
			report := *sess.Report
			report.FromCache = true
			return sess.Store, &report
		}
	}
	return nil, nil
}

// Session returns the session info for an existing session.
func (s *DashboardService) Session(ctx context.Context, id string) (*SessionInfo, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{ID: sess.ID, CreatedAt: sess.CreatedAt, Report: sess.Report}, nil
}

// DeleteSession removes a session and its tables.
func (s *DashboardService) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	infrastructure.RecordSessionChange(ctx, s.metrics, -1)
	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	return nil
}

// Overview computes the executive summary over the session's analysis
// table. A session without analysis data yields zero-valued stats.
func (s *DashboardService) Overview(ctx context.Context, id string) (analytics.OverviewStats, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return analytics.OverviewStats{}, err
	}

	start := s.now()
	stats := s.agg.Overview(ctx, s.analysisTable(sess))
	s.recordAggregation(ctx, "overview", time.Since(start))
	return stats, nil
}

// Languages returns per-language request counts with sourcing status,
// optionally filtered to one status. limit <= 0 means no limit.
func (s *DashboardService) Languages(ctx context.Context, id, statusFilter string, limit int) ([]analytics.LanguageStat, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	var want string
	switch statusFilter {
	case "":
	case FilterSourceable:
		want = analytics.StatusSourceable
	case FilterNotSourceable:
		want = analytics.StatusNotSourceable
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatusFilter, statusFilter)
	}

	start := s.now()
	stats := s.agg.SourcingStatus(ctx, s.analysisTable(sess), 0)
	s.recordAggregation(ctx, "languages", time.Since(start))

	if want != "" {
		filtered := stats[:0]
		for _, st := range stats {
			if st.Status == want {
				filtered = append(filtered, st)
			}
		}
		stats = filtered
	}

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// Trends computes the volume and distribution charts, optionally
// bounded by a date range. Time series and priority use the session's
// master table; status and location use the analysis table.
func (s *DashboardService) Trends(ctx context.Context, id string, dr *analytics.DateRange) (*TrendsResponse, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	if dr != nil && !dr.From.IsZero() && !dr.To.IsZero() && dr.To.Before(dr.From) {
		return nil, ErrInvalidDateRange
	}

	master := s.masterTable(sess)
	analysis := s.analysisTable(sess)
	start := s.now()
	resp := &TrendsResponse{
		Monthly:   s.agg.MonthlyVolume(ctx, master, dr),
		DayOfWeek: s.agg.DayOfWeekVolume(ctx, master, dr),
		Priority:  s.agg.PriorityDistribution(ctx, master),
		Status:    s.agg.StatusDistribution(ctx, analysis),
		Locations: s.agg.LocationDistribution(ctx, analysis, 10),
	}
	s.recordAggregation(ctx, "trends", time.Since(start))
	return resp, nil
}

// Gaps runs the sourcing gap analysis over the session's analysis
// table. limit <= 0 means no limit.
func (s *DashboardService) Gaps(ctx context.Context, id string, limit int) ([]analytics.GapEntry, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	start := s.now()
	entries := s.gaps.Analyze(ctx, s.analysisTable(sess), limit)
	s.recordAggregation(ctx, "gaps", time.Since(start))
	return entries, nil
}

// SearchRecords performs a case-insensitive substring search across
// every cell of the named table. An empty query matches nothing and
// yields an empty result, not an error.
func (s *DashboardService) SearchRecords(ctx context.Context, id, table, query string) (*dataset.Table, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	if table == "" {
		table = dataset.KeyAnalysis
	}
	t, ok := sess.Store.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	result := dataset.Search(t, query)
	if s.metrics != nil {
		s.metrics.SearchesTotal.Add(ctx, 1)
	}
	s.logger.DebugContext(ctx, "records searched",
		slog.String("session_id", id),
		slog.String("table", table),
		slog.Int("hits", result.Len()))
	return result, nil
}

// Table returns one of the session's loaded tables by logical name.
func (s *DashboardService) Table(ctx context.Context, id, name string) (*dataset.Table, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	t, ok := sess.Store.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// ExportCSV renders the named table as a BOM-prefixed CSV download,
// returning the dated filename and the file contents.
func (s *DashboardService) ExportCSV(ctx context.Context, id, table string) (string, []byte, error) {
	if table == "" {
		table = dataset.KeyAnalysis
	}

	t, err := s.Table(ctx, id, table)
	if err != nil {
		return "", nil, err
	}

	data, err := s.csv.ExportTable(t)
	if err != nil {
		return "", nil, err
	}

	if s.metrics != nil {
		s.metrics.ExportsTotal.Add(ctx, 1)
	}

	filename := exporter.ExportFilename(s.now())
	s.logger.InfoContext(ctx, "table exported",
		slog.String("session_id", id),
		slog.String("table", table),
		slog.String("filename", filename),
		slog.Int("bytes", len(data)))
	return filename, data, nil
}

// SessionCount returns the number of live sessions.
func (s *DashboardService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// lookup finds a session by ID.
func (s *DashboardService) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// analysisTable returns the session's analysis table, or an empty
// table when no analysis file was uploaded so aggregations degrade to
// empty results instead of errors.
func (s *DashboardService) analysisTable(sess *session) *dataset.Table {
	if t, ok := sess.Store.Table(dataset.KeyAnalysis); ok {
		return t
	}
	return dataset.NewTable(nil)
}

// masterTable returns the session's master table, falling back to the
// analysis table so trend charts stay useful for partial uploads.
func (s *DashboardService) masterTable(sess *session) *dataset.Table {
	if t, ok := sess.Store.Table(dataset.KeyMaster); ok {
		return t
	}
	return s.analysisTable(sess)
}

// recordAggregation reports aggregation latency when metrics are wired.
func (s *DashboardService) recordAggregation(ctx context.Context, kind string, d time.Duration) {
	if s.metrics != nil {
		infrastructure.RecordAggregationMetrics(ctx, s.metrics, kind, d)
	}
}

// recordUpload reports per-role upload metrics for each provided file.
func (s *DashboardService) recordUpload(ctx context.Context, in dataset.Inputs, d time.Duration, err error) {
	for _, part := range []struct {
		role  string
		input *dataset.Input
	}{
		{dataset.KeyMaster, in.Master},
		{dataset.KeyAnalysis, in.Analysis},
		{dataset.KeyLinguists, in.Linguists},
	} {
		if part.input == nil {
			continue
		}
		infrastructure.RecordUploadMetrics(ctx, s.metrics, part.role,
			int64(len(part.input.Data)), d, err)
	}
}

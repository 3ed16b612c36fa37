package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/analysis"
	"github.com/irfndi/prism-dashboard-go/internal/annotate"
	"github.com/irfndi/prism-dashboard-go/internal/cache"
	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/models"
	"github.com/irfndi/prism-dashboard-go/internal/stats"
	"github.com/irfndi/prism-dashboard-go/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrNoData is returned when a category has no stored readings.
var ErrNoData = errors.New("no readings stored for category")

// Trace sources used in logs and metrics.
const (
	SourceCategory = "category"
	SourceUpload   = "upload"
	SourceRequest  = "request"
)

// ReadingStore is the subset of the readings repository the dashboard needs.
type ReadingStore interface {
	Insert(ctx context.Context, reading *models.PowerReading) error
	ListByCategory(ctx context.Context, category models.Category) ([]models.PowerReading, error)
}

// DashboardMetrics receives analysis and ingest events.
type DashboardMetrics interface {
	RecordAnalysis(source string, duration time.Duration, nightZones, slopeZones int)
	RecordRejected(reason string)
	RecordReadingIngested(category, source string)
}

// PlotBundle is the cached plot payload of a category or an uploaded file.
type PlotBundle struct {
	Category    string                        `json:"category,omitempty"`
	Samples     int                           `json:"samples"`
	Analysis    *analysis.Result              `json:"analysis"`
	Highlight   *annotate.Figure              `json:"night_and_slope_highlighted_plot"`
	Aggregates  map[stats.Period]stats.Series `json:"aggregate_plots"`
	Weekday     []stats.MonthBreakdown        `json:"weekday_plot"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// UploadResult is the response to an uploaded CSV trace.
type UploadResult struct {
	Statistics stats.Summary `json:"statistics"`
	Plots      *PlotBundle   `json:"plots"`
}

// DashboardService computes, caches and serves plots and statistics per
// device category.
type DashboardService struct {
	readings ReadingStore
	cache    *cache.ResultCache
	params   analysis.Params
	workers  int
	metrics  DashboardMetrics
	tracer   trace.Tracer
	logger   *logging.StandardLogger
	now      func() time.Time
}

// NewDashboardService creates a dashboard service.
//
// Parameters:
//
//	readings: Reading repository.
//	resultCache: Cache for plot and statistics payloads.
//	cfg: Analysis configuration.
//	metrics: Metrics sink, may be nil.
//	logger: Standard logger, may be nil.
//
// Returns:
//
//	*DashboardService: Initialized service.
//	error: Error if the configured parameters are invalid.
func NewDashboardService(readings ReadingStore, resultCache *cache.ResultCache, cfg config.AnalysisConfig, metrics DashboardMetrics, logger *logging.StandardLogger) (*DashboardService, error) {
	params, err := ParamsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	if resultCache == nil {
		resultCache = cache.NewResultCache(cache.NopStore{}, 0, logger, nil)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &DashboardService{
		readings: readings,
		cache:    resultCache,
		params:   params,
		workers:  workers,
		metrics:  metrics,
		tracer:   telemetry.GetAnalysisTracer(),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// ParamsFromConfig converts the analysis configuration into engine
// parameters.
func ParamsFromConfig(cfg config.AnalysisConfig) (analysis.Params, error) {
	p := analysis.Params{
		StartHour:   cfg.StartHour,
		EndHour:     cfg.EndHour,
		DistToCheck: cfg.DistToCheck,
		MinSlope:    cfg.MinSlope,
		Smoothing:   cfg.SmoothingPeriod,
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return analysis.Params{}, fmt.Errorf("invalid analysis timezone: %w", err)
		}
		p.Location = loc
	}
	if err := p.Validate(); err != nil {
		return analysis.Params{}, err
	}
	return p, nil
}

// Params returns the engine parameters used for stored categories.
func (s *DashboardService) Params() analysis.Params {
	return s.params
}

// Plot returns the plot bundle of category, computing and caching it on a
// cache miss.
func (s *DashboardService) Plot(ctx context.Context, category models.Category) (*PlotBundle, error) {
	var bundle PlotBundle
	found, err := s.cache.GetJSON(ctx, "plot", category.PlotKey(), &bundle)
	if err != nil {
		s.logger.WithCategory(category.String()).WithError(err).Warn("Plot cache unavailable, computing directly")
	}
	if found {
		return &bundle, nil
	}

	plot, _, err := s.refresh(ctx, category)
	return plot, err
}

// Statistics returns the summary statistics of category, computing and
// caching them on a cache miss.
func (s *DashboardService) Statistics(ctx context.Context, category models.Category) (*stats.Summary, error) {
	var summary stats.Summary
	found, err := s.cache.GetJSON(ctx, "statistics", category.StatisticsKey(), &summary)
	if err != nil {
		s.logger.WithCategory(category.String()).WithError(err).Warn("Statistics cache unavailable, computing directly")
	}
	if found {
		return &summary, nil
	}

	_, summaryPtr, err := s.refresh(ctx, category)
	return summaryPtr, err
}

// AddReading stores reading and refreshes the cached plot and statistics of
// its category. A failed refresh is logged; the reading stays stored.
func (s *DashboardService) AddReading(ctx context.Context, reading *models.PowerReading, source string) error {
	if !reading.Category.Valid() {
		return &models.ErrUnknownCategory{Name: reading.Category.String()}
	}
	if math.IsNaN(reading.Power) || math.IsInf(reading.Power, 0) {
		return &analysis.ValidationError{Field: "power", Message: "must be a finite number"}
	}
	if reading.Timestamp.IsZero() {
		return &analysis.ValidationError{Field: "timestamp", Message: "is required"}
	}

	if err := s.readings.Insert(ctx, reading); err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordReadingIngested(reading.Category.String(), source)
	}

	if _, _, err := s.refresh(ctx, reading.Category); err != nil {
		s.logger.WithCategory(reading.Category.String()).WithError(err).Warn("Failed to refresh cached results")
	}
	return nil
}

// AnalyzeUpload parses a CSV trace and returns its statistics and plots
// without storing anything.
func (s *DashboardService) AnalyzeUpload(ctx context.Context, r io.Reader) (*UploadResult, error) {
	tr, err := ParseTraceCSV(r)
	if err != nil {
		return nil, err
	}
	summary, err := stats.Describe(tr.Values())
	if err != nil {
		return nil, err
	}
	bundle, err := s.BuildBundle(ctx, SourceUpload, tr, s.params)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Statistics: summary, Plots: bundle}, nil
}

// AnalyzeTrace runs the engine on a caller-supplied trace and assembles its
// highlight figure.
func (s *DashboardService) AnalyzeTrace(ctx context.Context, tr analysis.Trace, p analysis.Params) (*analysis.Result, *annotate.Figure, error) {
	res, err := s.analyze(ctx, SourceRequest, tr, p)
	if err != nil {
		return nil, nil, err
	}
	fig, err := annotate.Assemble(tr, res, annotate.DefaultOptions())
	if err != nil {
		return nil, nil, err
	}
	return res, fig, nil
}

// WarmCache recomputes every category. Traces are loaded concurrently and
// analysed as one batch. Failures are logged and counted but do not stop the
// other categories.
func (s *DashboardService) WarmCache(ctx context.Context) (warmed int, err error) {
	start := time.Now()
	categories := models.Categories()

	traces, err := s.loadAll(ctx, categories)
	if err != nil {
		return 0, err
	}

	batch := make([]analysis.Trace, 0, len(categories))
	loaded := make([]models.Category, 0, len(categories))
	for i, tr := range traces {
		if tr != nil {
			batch = append(batch, tr)
			loaded = append(loaded, categories[i])
		}
	}

	bctx, span := telemetry.StartSpan(ctx, s.tracer, "analysis.batch",
		attribute.Int("analysis.traces", len(batch)),
	)
	outcomes, err := analysis.AnalyzeBatch(bctx, batch, s.params, s.workers)
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		return 0, err
	}
	span.End()

	for i, out := range outcomes {
		category := loaded[i]
		s.observe(SourceCategory, len(batch[i]), out.Result, out.Err, out.Duration)
		if out.Err != nil {
			s.logger.WithCategory(category.String()).WithError(out.Err).Warn("Failed to warm category")
			continue
		}
		if _, _, err := s.store(ctx, category, batch[i], out.Result); err != nil {
			s.logger.WithCategory(category.String()).WithError(err).Warn("Failed to warm category")
			continue
		}
		warmed++
	}

	s.logger.WithComponent("dashboard").WithFields(logrus.Fields{
		"categories":  len(categories),
		"warmed":      warmed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Cache warming completed")
	return warmed, nil
}

// loadAll loads every category concurrently. Categories that fail to load
// or have no readings are left nil.
func (s *DashboardService) loadAll(ctx context.Context, categories []models.Category) ([]analysis.Trace, error) {
	traces := make([]analysis.Trace, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, category := range categories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tr, err := s.loadTrace(gctx, category)
			if err != nil {
				if !errors.Is(err, ErrNoData) {
					s.logger.WithCategory(category.String()).WithError(err).Warn("Failed to load category")
				}
				return nil
			}
			traces[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return traces, nil
}

// ClearCache drops the cached plot and statistics of every category.
func (s *DashboardService) ClearCache(ctx context.Context) error {
	categories := models.Categories()
	keys := make([]string, 0, 2*len(categories))
	for _, category := range categories {
		keys = append(keys, category.PlotKey(), category.StatisticsKey())
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear cached results: %w", err)
	}
	s.logger.WithComponent("dashboard").WithField("keys", len(keys)).Info("Cached results cleared")
	return nil
}

// CacheStats returns the hit and miss counters of the result cache.
func (s *DashboardService) CacheStats() cache.ResultCacheStats {
	return s.cache.GetStats()
}

// refresh loads category, computes both payloads and stores them.
func (s *DashboardService) refresh(ctx context.Context, category models.Category) (*PlotBundle, *stats.Summary, error) {
	if !category.Valid() {
		return nil, nil, &models.ErrUnknownCategory{Name: category.String()}
	}

	tr, err := s.loadTrace(ctx, category)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.analyze(ctx, SourceCategory, tr, s.params)
	if err != nil {
		return nil, nil, err
	}
	return s.store(ctx, category, tr, res)
}

// store builds the plot bundle and statistics of category from an analysed
// trace and caches both.
func (s *DashboardService) store(ctx context.Context, category models.Category, tr analysis.Trace, res *analysis.Result) (*PlotBundle, *stats.Summary, error) {
	summary, err := stats.Describe(tr.Values())
	if err != nil {
		return nil, nil, err
	}
	bundle, err := s.bundle(tr, res, s.params)
	if err != nil {
		return nil, nil, err
	}
	bundle.Category = category.String()

	if err := s.cache.SetJSON(ctx, category.PlotKey(), bundle); err != nil {
		s.logger.WithCategory(category.String()).WithError(err).Warn("Failed to cache plot")
	}
	if err := s.cache.SetJSON(ctx, category.StatisticsKey(), summary); err != nil {
		s.logger.WithCategory(category.String()).WithError(err).Warn("Failed to cache statistics")
	}
	return bundle, &summary, nil
}

func (s *DashboardService) loadTrace(ctx context.Context, category models.Category) (analysis.Trace, error) {
	readings, err := s.readings.ListByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s readings: %w", category, err)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoData, category.String())
	}
	tr := make(analysis.Trace, len(readings))
	for i, r := range readings {
		tr[i] = analysis.Sample{Timestamp: r.Timestamp, Value: r.Power}
	}
	return tr, nil
}

// BuildBundle analyses tr and assembles every figure of a plot bundle.
func (s *DashboardService) BuildBundle(ctx context.Context, source string, tr analysis.Trace, p analysis.Params) (*PlotBundle, error) {
	res, err := s.analyze(ctx, source, tr, p)
	if err != nil {
		return nil, err
	}
	return s.bundle(tr, res, p)
}

func (s *DashboardService) bundle(tr analysis.Trace, res *analysis.Result, p analysis.Params) (*PlotBundle, error) {
	fig, err := annotate.Assemble(tr, res, annotate.DefaultOptions())
	if err != nil {
		return nil, err
	}
	aggregates, err := stats.AggregateAll(tr, p.Location)
	if err != nil {
		return nil, err
	}
	return &PlotBundle{
		Samples:     len(tr),
		Analysis:    res,
		Highlight:   fig,
		Aggregates:  aggregates,
		Weekday:     stats.WeekdayBreakdown(tr, p.Location),
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *DashboardService) analyze(ctx context.Context, source string, tr analysis.Trace, p analysis.Params) (*analysis.Result, error) {
	_, span := telemetry.StartSpan(ctx, s.tracer, "analysis.run",
		attribute.String("analysis.source", source),
		attribute.Int("analysis.samples", len(tr)),
	)
	defer span.End()

	start := time.Now()
	res, err := analysis.Analyze(tr, p)
	s.observe(source, len(tr), res, err, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("analysis.night_zones", len(res.NightZones)),
		attribute.Int("analysis.slope_zones", len(res.SlopeZones)),
	)
	return res, nil
}

// observe records metrics and logs for one engine run.
func (s *DashboardService) observe(source string, samples int, res *analysis.Result, err error, duration time.Duration) {
	if err != nil {
		if analysis.IsRejected(err) && s.metrics != nil {
			s.metrics.RecordRejected(rejectReason(err))
		}
		return
	}
	if s.metrics != nil {
		s.metrics.RecordAnalysis(source, duration, len(res.NightZones), len(res.SlopeZones))
	}
	s.logger.LogAnalysis(source, samples, len(res.NightZones), len(res.SlopeZones), duration)
}

func rejectReason(err error) string {
	var verr *analysis.ValidationError
	switch {
	case errors.Is(err, analysis.ErrEmptyTrace):
		return "empty"
	case errors.Is(err, analysis.ErrUndefinedStart):
		return "undefined_start"
	case errors.As(err, &verr):
		return verr.Field
	default:
		return "unknown"
	}
}

package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/analysis"
	"github.com/irfndi/prism-dashboard-go/internal/annotate"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/middleware"
	"github.com/irfndi/prism-dashboard-go/internal/models"
	"github.com/irfndi/prism-dashboard-go/internal/render"
	"github.com/irfndi/prism-dashboard-go/internal/services"
	"github.com/irfndi/prism-dashboard-go/internal/stats"
)

// Dashboard is the service behind the data routes.
type Dashboard interface {
	Plot(ctx context.Context, category models.Category) (*services.PlotBundle, error)
	Statistics(ctx context.Context, category models.Category) (*stats.Summary, error)
	AddReading(ctx context.Context, reading *models.PowerReading, source string) error
	AnalyzeUpload(ctx context.Context, r io.Reader) (*services.UploadResult, error)
	AnalyzeTrace(ctx context.Context, tr analysis.Trace, p analysis.Params) (*analysis.Result, *annotate.Figure, error)
	Params() analysis.Params
}

// DataHandler serves the /data routes.
type DataHandler struct {
	dashboard   Dashboard
	renderer    annotate.Renderer
	uploadLimit int64
	logger      *logging.StandardLogger
}

// SampleRequest is one sample of an analyze request.
type SampleRequest struct {
	Timestamp time.Time `json:"timestamp" binding:"required"`
	Power     *float64  `json:"power" binding:"required"`
}

// ParamsRequest overrides the configured analysis parameters. Omitted
// fields keep their configured value.
type ParamsRequest struct {
	StartHour   *int     `json:"start_hour"`
	EndHour     *int     `json:"end_hour"`
	DistToCheck *int     `json:"dist_to_check"`
	MinSlope    *float64 `json:"min_slope"`
	Smoothing   *int     `json:"smoothing"`
	Timezone    string   `json:"timezone"`
}

// AnalyzeRequest is the body of POST /data/analyze.
type AnalyzeRequest struct {
	Samples []SampleRequest `json:"samples" binding:"required,dive"`
	Params  *ParamsRequest  `json:"params"`
}

// AnalyzeResponse carries the engine result and its highlight figure.
type AnalyzeResponse struct {
	Analysis *analysis.Result `json:"analysis"`
	Zones    []analysis.Zone  `json:"zones"`
	Figure   *annotate.Figure `json:"figure"`
}

// NewDataHandler creates a data handler. uploadLimit caps CSV uploads and
// JSON trace bodies in bytes; 0 disables the cap.
func NewDataHandler(dashboard Dashboard, renderer annotate.Renderer, uploadLimit int64, logger *logging.StandardLogger) *DataHandler {
	if renderer == nil {
		renderer = render.NewChartRenderer()
	}
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return &DataHandler{
		dashboard:   dashboard,
		renderer:    renderer,
		uploadLimit: uploadLimit,
		logger:      logger,
	}
}

// GetStatistics returns the describe table of a category.
// @Summary Category statistics
// @Tags data
// @Produce json
// @Param category path string true "Device category"
// @Success 200 {object} stats.Summary
// @Failure 404 {object} map[string]string
// @Router /api/v1/data/statistics/{category} [get]
func (h *DataHandler) GetStatistics(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	summary, err := h.dashboard.Statistics(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err, "Failed to compute statistics")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetPlot returns the plot bundle of a category.
// @Summary Category plots
// @Tags data
// @Produce json
// @Param category path string true "Device category"
// @Success 200 {object} services.PlotBundle
// @Failure 404 {object} map[string]string
// @Router /api/v1/data/plot/{category} [get]
func (h *DataHandler) GetPlot(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	bundle, err := h.dashboard.Plot(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err, "Failed to build plot")
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// GetPlotImage renders the highlight figure of a category.
// @Summary Category highlight image
// @Tags data
// @Produce image/png
// @Produce image/svg+xml
// @Param category path string true "Device category"
// @Param format query string false "png (default) or svg"
// @Router /api/v1/data/plot/{category}/image [get]
func (h *DataHandler) GetPlotImage(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	format, err := annotate.ParseFormat(c.DefaultQuery("format", string(annotate.FormatPNG)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bundle, err := h.dashboard.Plot(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err, "Failed to build plot")
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(bundle.Highlight, format, &buf); err != nil {
		if errors.Is(err, render.ErrTooFewPoints) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		middleware.RecordError(c, err, "render failed")
		h.logger.WithCategory(category.String()).WithError(err).Error("Failed to render plot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render plot"})
		return
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// AddData stores one reading and refreshes the category's cached results.
// @Summary Add a reading
// @Tags data
// @Accept json
// @Produce json
// @Param request body models.ReadingRequest true "Reading"
// @Success 201 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/data/add [post]
func (h *DataHandler) AddData(c *gin.Context) {
	var req models.ReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	reading := &models.PowerReading{
		Timestamp: req.Timestamp,
		Power:     *req.Power,
		Category:  category,
	}
	if err := h.dashboard.AddReading(c.Request.Context(), reading, "api"); err != nil {
		h.respondError(c, err, "Failed to store reading")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Data added successfully"})
}

// UploadCSV analyses an uploaded timestamp,power CSV without storing it.
// @Summary Analyse a CSV file
// @Tags data
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} services.UploadResult
// @Failure 406 {object} map[string]string
// @Router /api/v1/data/custom [post]
func (h *DataHandler) UploadCSV(c *gin.Context) {
	h.limitBody(c)

	header, err := c.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "A CSV file is required in the 'file' field"})
		return
	}
	if !strings.HasSuffix(header.Filename, ".csv") {
		c.JSON(http.StatusNotAcceptable, gin.H{"error": "Not a CSV File"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "There was an error uploading the file"})
		return
	}
	defer file.Close()

	result, err := h.dashboard.AnalyzeUpload(c.Request.Context(), file)
	if err != nil {
		var csvErr *services.CSVError
		if errors.As(err, &csvErr) || analysis.IsRejected(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		middleware.RecordError(c, err, "upload failed")
		h.logger.WithError(err).WithField("file", header.Filename).Error("Failed to analyse upload")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "There was an error uploading the file"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Analyze runs the engine on a trace in the request body.
// @Summary Analyse a trace
// @Tags data
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "Trace and parameters"
// @Success 200 {object} AnalyzeResponse
// @Failure 413 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/data/analyze [post]
func (h *DataHandler) Analyze(c *gin.Context) {
	h.limitBody(c)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Trace too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	params, err := mergeParams(h.dashboard.Params(), req.Params)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	tr := make(analysis.Trace, len(req.Samples))
	for i, s := range req.Samples {
		tr[i] = analysis.Sample{Timestamp: s.Timestamp, Value: *s.Power}
	}

	res, fig, err := h.dashboard.AnalyzeTrace(c.Request.Context(), tr, params)
	if err != nil {
		h.respondError(c, err, "Failed to analyse trace")
		return
	}
	c.JSON(http.StatusOK, AnalyzeResponse{Analysis: res, Zones: res.Zones(), Figure: fig})
}

func (h *DataHandler) limitBody(c *gin.Context) {
	if h.uploadLimit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadLimit)
	}
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (h *DataHandler) category(c *gin.Context) (models.Category, bool) {
	category, err := models.ParseCategory(c.Param("category"))
	if err != nil {
		h.respondError(c, err, "")
		return "", false
	}
	return category, true
}

// respondError maps service errors to status codes. fallback is the message
// of unexpected failures.
func (h *DataHandler) respondError(c *gin.Context, err error, fallback string) {
	var unknown *models.ErrUnknownCategory
	switch {
	case errors.As(err, &unknown):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Category '%s' not found", unknown.Name)})
	case errors.Is(err, services.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case analysis.IsRejected(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
	default:
		middleware.RecordError(c, err, fallback)
		h.logger.WithError(err).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func mergeParams(base analysis.Params, req *ParamsRequest) (analysis.Params, error) {
	if req == nil {
		return base, nil
	}
	p := base
	if req.StartHour != nil {
		p.StartHour = *req.StartHour
	}
	if req.EndHour != nil {
		p.EndHour = *req.EndHour
	}
	if req.DistToCheck != nil {
		p.DistToCheck = *req.DistToCheck
	}
	if req.MinSlope != nil {
		p.MinSlope = *req.MinSlope
	}
	if req.Smoothing != nil {
		p.Smoothing = *req.Smoothing
	}
	if req.Timezone != "" {
		loc, err := time.LoadLocation(req.Timezone)
		if err != nil {
			return analysis.Params{}, fmt.Errorf("timezone: %w", err)
		}
		p.Location = loc
	}
	return p, p.Validate()
}

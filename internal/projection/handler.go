package projection

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	apperr "github.com/prism-lab/project-prism/internal/core/errors"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	views := r.Group("/v1/views")
	{
		views.GET("", s.HandleListViews)
		// Latest run lives under the view because its identity is the
		// view's currently resolved configuration.
		views.GET("/:name/latest", s.HandleLatestRun)
	}

	runs := r.Group("/v1/runs")
	{
		runs.POST("", s.HandleTriggerRun)
		runs.GET("/:run_id", s.HandleGetRun)
		runs.GET("/:run_id/aggregates", s.HandleRunAggregates)
		runs.GET("/:run_id/segments", s.HandleRunSegments)
		runs.GET("/:run_id/forecast", s.HandleRunForecast)
		runs.GET("/:run_id/summary", s.HandleRunSummary)
		runs.GET("/:run_id/products", s.HandleRunProducts)
		runs.GET("/:run_id/margins", s.HandleRunMargins)
	}
}

// HandleTriggerRun handles POST /v1/runs. The run executes before the
// response, so the returned record is terminal: succeeded, failed with
// its stage and kind, or served from the run cache.
func (s *Service) HandleTriggerRun(c *gin.Context) {
	var req TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.ErrorResponse{
			ErrorType: apperr.KindInvalidConfig,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	cfg, err := s.resolveConfig(req)
	if err != nil {
		s.renderError(c, err)
		return
	}

	run, err := s.runs.Run(c.Request.Context(), cfg)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// HandleGetRun handles GET /v1/runs/:run_id.
func (s *Service) HandleGetRun(c *gin.Context) {
	runID := c.Param("run_id")
	run, ok := s.runs.GetRun(runID)
	if !ok {
		c.JSON(http.StatusNotFound, apperr.ErrorResponse{
			ErrorType: apperr.KindNotFound,
			Message:   fmt.Sprintf("run %s not found", runID),
		})
		return
	}
	c.JSON(http.StatusOK, run)
}

// HandleLatestRun handles GET /v1/views/:name/latest.
func (s *Service) HandleLatestRun(c *gin.Context) {
	name := c.Param("name")
	view, err := s.views.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, apperr.ErrorResponse{
			ErrorType: apperr.KindNotFound,
			Message:   fmt.Sprintf("view %q not found", name),
		})
		return
	}

	run, ok, err := s.runs.LatestRun(c.Request.Context(), view.RunConfig(s.nowFn()))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, apperr.ErrorResponse{
			ErrorType: apperr.KindNotFound,
			Message:   fmt.Sprintf("no run recorded for view %q at its current configuration", name),
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

// HandleListViews handles GET /v1/views.
func (s *Service) HandleListViews(c *gin.Context) {
	views := s.views.Views()
	resp := ViewsResponse{Views: make([]ViewSummary, 0, len(views))}
	for _, v := range views {
		resp.Views = append(resp.Views, summarizeView(v))
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRunAggregates handles GET /v1/runs/:run_id/aggregates.
func (s *Service) HandleRunAggregates(c *gin.Context) {
	results, run, ok := s.publishedResults(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, AggregatesResponse{RunID: run.RunID, Aggregates: results.Aggregates})
}

// HandleRunSegments handles GET /v1/runs/:run_id/segments.
func (s *Service) HandleRunSegments(c *gin.Context) {
	results, run, ok := s.publishedResults(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SegmentsResponse{
		RunID:               run.RunID,
		SnapshotAt:          results.Segmentation.SnapshotAt,
		Segments:            results.Segmentation.Segments,
		InactiveCustomerIDs: results.Segmentation.InactiveCustomerIDs,
	})
}

// HandleRunForecast handles GET /v1/runs/:run_id/forecast.
func (s *Service) HandleRunForecast(c *gin.Context) {
	results, run, ok := s.publishedResults(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ForecastResponse{RunID: run.RunID, Forecast: results.Forecast})
}

// HandleRunSummary handles GET /v1/runs/:run_id/summary.
func (s *Service) HandleRunSummary(c *gin.Context) {
	results, run, ok := s.publishedResults(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SummaryResponse{RunID: run.RunID, Summary: results.Summary})
}

// HandleRunProducts handles GET /v1/runs/:run_id/products.
func (s *Service) HandleRunProducts(c *gin.Context) {
	results, run, ok := s.publishedResults(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ProductsResponse{RunID: run.RunID, Products: results.TopProducts})
}

// HandleRunMargins handles GET /v1/runs/:run_id/margins.
func (s *Service) HandleRunMargins(c *gin.Context) {
	results, run, ok := s.publishedResults(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, MarginsResponse{RunID: run.RunID, Margins: results.Margins})
}

// publishedResults resolves :run_id to a published result set. Runs
// that have not succeeded yield 404 so consumers never observe a
// partial artifact; failed runs yield 409 carrying the failure kind.
func (s *Service) publishedResults(c *gin.Context) (*analytics.ResultSet, analytics.PipelineRun, bool) {
	runID := c.Param("run_id")
	results, run, ok := s.runs.Results(runID)
	if !ok {
		c.JSON(http.StatusNotFound, apperr.ErrorResponse{
			ErrorType: apperr.KindNotFound,
			Message:   fmt.Sprintf("run %s not found", runID),
		})
		return nil, analytics.PipelineRun{}, false
	}

	switch run.Status {
	case analytics.StatusSucceeded:
		return results, run, true
	case analytics.StatusFailed:
		c.JSON(http.StatusConflict, apperr.ErrorResponse{
			ErrorType: run.ErrorKind,
			Message:   fmt.Sprintf("run %s failed at stage %s", runID, run.FailedStage),
			Details:   run.Error,
		})
		return nil, analytics.PipelineRun{}, false
	default:
		c.JSON(http.StatusNotFound, apperr.ErrorResponse{
			ErrorType: apperr.KindNotReady,
			Message:   fmt.Sprintf("run %s has not succeeded yet (status %s)", runID, run.Status),
		})
		return nil, analytics.PipelineRun{}, false
	}
}

// renderError maps the error taxonomy onto HTTP statuses: validation
// kinds are 400, a store outage is 503, everything else is 500.
func (s *Service) renderError(c *gin.Context, err error) {
	kind := apperr.Kind(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindInvalidConfig, apperr.KindInvalidRange, apperr.KindUnsupportedGranularity:
		status = http.StatusBadRequest
	case apperr.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, apperr.ErrorResponse{
		ErrorType: kind,
		Message:   "Run request rejected",
		Details:   err.Error(),
	})
}

// Package http serves the derived tables and the fitted model as a
// read-only JSON API. One pipeline run backs the whole server; there is
// no live refresh.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kpritch24/johns-hopkins-covid19/internal/covid"
	"github.com/kpritch24/johns-hopkins-covid19/internal/regression"
)

// DataHandler exposes one pipeline run over HTTP.
type DataHandler struct {
	results *covid.Results
	model   *regression.Model
	eval    *regression.Evaluation
	logger  *slog.Logger
}

// NewDataHandler wraps pipeline results for serving. Model and eval may
// be nil when the regression step failed; the table endpoints still work.
func NewDataHandler(results *covid.Results, model *regression.Model, eval *regression.Evaluation, logger *slog.Logger) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataHandler{
		results: results,
		model:   model,
		eval:    eval,
		logger:  logger.With(slog.String("component", "data_handler")),
	}
}

// Routes returns the API router.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/api/healthz", h.HealthCheck)
	r.Get("/api/tables/{name}", h.GetTable)
	r.Get("/api/model", h.GetModel)

	return r
}

// requestLogger logs one line per request in the shared structured format.
func (h *DataHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.InfoContext(r.Context(), "handled request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

// HealthCheck handles GET /api/healthz
func (h *DataHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":             "ok",
		"unified_us_records": len(h.results.UnifiedUS.Records),
		"state_summaries":    len(h.results.StateSummaries),
		"model_available":    h.model != nil,
	})
}

// GetTable handles GET /api/tables/{name}
func (h *DataHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var payload interface{}
	switch name {
	case "unified_us":
		payload = h.results.UnifiedUS.Records
	case "unified_global":
		payload = h.results.UnifiedGlobal.Records
	case "us_region_day":
		payload = h.results.USRegionDays
	case "us_country_day":
		payload = h.results.USCountryDays
	case "global_country_day":
		payload = h.results.GlobalCountryDays
	case "state_summary":
		payload = h.results.StateSummaries
	default:
		h.logger.WarnContext(r.Context(), "unknown table requested",
			slog.String("table", name))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{
			"error": "unknown table: " + name,
		})
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"table": name,
		"rows":  payload,
	})
}

// modelResponse is the JSON shape of the fitted model endpoint.
type modelResponse struct {
	Intercept   float64            `json:"intercept"`
	Slope       float64            `json:"slope"`
	N           int                `json:"observations"`
	RMSE        float64            `json:"rmse"`
	RSquared    float64            `json:"r_squared"`
	Predictions map[string]float64 `json:"predictions_by_state,omitempty"`
	Residuals   map[string]float64 `json:"residuals_by_state,omitempty"`
}

// GetModel handles GET /api/model
func (h *DataHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	if h.model == nil || h.eval == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{
			"error": "no model was fit for this run",
		})
		return
	}

	resp := modelResponse{
		Intercept: h.model.Intercept,
		Slope:     h.model.Slope,
		N:         h.model.N,
		RMSE:      h.eval.RMSE,
		RSquared:  h.eval.RSquared,
	}

	if len(h.eval.Predictions) == len(h.results.StateSummaries) {
		resp.Predictions = make(map[string]float64, len(h.eval.Predictions))
		resp.Residuals = make(map[string]float64, len(h.eval.Residuals))
		for i, s := range h.results.StateSummaries {
			resp.Predictions[s.ProvinceState] = h.eval.Predictions[i]
			resp.Residuals[s.ProvinceState] = h.eval.Residuals[i]
		}
	}

	render.JSON(w, r, resp)
}

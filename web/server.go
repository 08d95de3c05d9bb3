// Package web serves the wine quality dashboard: the model comparison,
// batch predictions on uploaded files and the dataset description. It
// only reads the artifacts written by training.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/iitrpratibha/ml-wine-quality-classification/dataset"
	"github.com/iitrpratibha/ml-wine-quality-classification/pipeline"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
	"golang.org/x/sync/semaphore"
)

//go:embed templates/*.html content/*.md
var assets embed.FS

// Options configures a Server.
type Options struct {
	Registry *pipeline.Registry

	// PreparedCSV feeds the About page statistics. Optional.
	PreparedCSV string

	// MaxUploadBytes limits upload bodies. Defaults to 10 MiB.
	MaxUploadBytes int64

	// MaxConcurrentPredictions bounds predictions in flight. Defaults to
	// GOMAXPROCS.
	MaxConcurrentPredictions int
}

// Server is the dashboard HTTP handler.
type Server struct {
	opts      Options
	registry  *pipeline.Registry
	predictor *pipeline.Predictor
	pages     map[string]*template.Template
	about     template.HTML
	router    chi.Router
	predicts  *semaphore.Weighted
	logger    log.Logger

	preparedMu sync.Mutex
	prepared   *datasetView
}

// New parses the embedded templates and builds the routes.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.NewValidationError("registry", "must not be nil", nil)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.MaxConcurrentPredictions <= 0 {
		opts.MaxConcurrentPredictions = runtime.GOMAXPROCS(0)
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	about, err := renderMarkdown("content/about.md")
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:      opts,
		registry:  opts.Registry,
		predictor: pipeline.NewPredictor(opts.Registry),
		pages:     pages,
		about:     about,
		predicts:  semaphore.NewWeighted(int64(opts.MaxConcurrentPredictions)),
		logger:    log.GetLoggerWithName("web"),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/comparison", s.handleComparison)
	r.Get("/predict", s.handlePredictForm)
	r.Post("/predict", s.handlePredict)
	r.Get("/about", s.handleAbout)
	r.Get("/healthz", s.handleHealth)

	r.Route("/charts", func(r chi.Router) {
		r.Get("/metric.png", s.handleMetricChart)
		r.Get("/heatmap.png", s.handleHeatmapChart)
		r.Get("/correlation.png", s.handleCorrelationChart)
	})
	r.Post("/api/predict", s.handleAPIPredict)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Dashboard listening", log.AddrKey, addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			"http.method", r.Method,
			"http.path", r.URL.Path,
			"http.status", ww.Status(),
			"request.id", middleware.GetReqID(r.Context()),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	})
}

// datasetView caches what the About page derives from the prepared table.
type datasetView struct {
	table *dataset.Table
	stats []dataset.ColumnStats
	chart []byte
}

// preparedView loads the prepared table on first success. Failures are
// retried on the next request.
func (s *Server) preparedView() (*datasetView, error) {
	s.preparedMu.Lock()
	defer s.preparedMu.Unlock()
	if s.prepared != nil {
		return s.prepared, nil
	}
	if s.opts.PreparedCSV == "" {
		return nil, errors.NewArtifactError("load", "", errors.ErrArtifactNotFound)
	}
	t, err := dataset.ReadPreparedCSV(s.opts.PreparedCSV)
	if err != nil {
		return nil, err
	}
	st, err := dataset.Describe(t)
	if err != nil {
		return nil, err
	}
	corr, err := dataset.Correlation(t)
	if err != nil {
		return nil, err
	}
	chart, err := CorrelationHeatmap(corr, t.Columns)
	if err != nil {
		return nil, err
	}
	s.prepared = &datasetView{table: t, stats: st, chart: chart}
	return s.prepared, nil
}

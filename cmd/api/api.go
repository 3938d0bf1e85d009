package main

import (
	"net/http"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/farxc/envelopa-auditoria/internal/logger"
	"github.com/farxc/envelopa-auditoria/internal/metrics"
	"github.com/farxc/envelopa-auditoria/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type application struct {
	config    config
	store     store.Storage
	auditor   *audit.Auditor
	runner    *audit.Runner
	appLogger *logger.Logger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	validate  *validator.Validate
}

type config struct {
	addr     string
	logLevel string
	db       dbConfig
	audit    auditConfig
}

type dbConfig struct {
	addr         string
	maxOpenConns int
	maxIdleConns int
	maxIdleTime  string
}

type auditConfig struct {
	batchSize            int
	workers              int
	requireInvoice       bool
	checkInvoicePayments bool
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(app.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.Route("/audits", func(r chi.Router) {
			r.Post("/", app.handleCreateAuditRun)
			r.Get("/contracts/{id}", app.handleAuditContract)
			r.Get("/runs", app.handleGetAuditRuns)
			r.Get("/runs/{id}", app.handleGetAuditRun)
			r.Get("/runs/{id}/findings", app.handleGetRunFindings)
		})
		r.Route("/forensics", func(r chi.Router) {
			r.Get("/benford", app.handleGetBenford)
			r.Get("/invoice-reuse", app.handleGetInvoiceReuse)
			r.Get("/orphans", app.handleGetOrphans)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	const component = "API"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 120,
		ReadTimeout:  time.Second * 40,
		IdleTimeout:  time.Minute,
	}

	app.appLogger.Info(component, "Server started on %s", app.config.addr)
	return srv.ListenAndServe()
}

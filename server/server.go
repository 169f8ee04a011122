package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/piyachat/chainflow/agent/dispatch"
	statex "github.com/piyachat/chainflow/agent/state"
	"github.com/piyachat/chainflow/mock/crm"
	"github.com/piyachat/chainflow/mock/scoring"
	"github.com/piyachat/chainflow/mock/warehouse"
	"github.com/piyachat/chainflow/pipeline"
	refdatax "github.com/piyachat/chainflow/refdata"
)

// Config is the HTTP surface configuration, loaded through configx with the
// SERVER prefix.
type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"2m"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" split_words:"true" default:"2m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
}

// Service owns the conversational and workflow endpoints plus the mounted
// mock external systems.
type Service struct {
	dispatcher   *dispatch.Dispatcher
	sessions     statex.Store
	refData      *refdatax.Provider
	orchestrator *pipeline.Orchestrator

	warehouseSvc *warehouse.Service
	scoringSvc   *scoring.Service
	crmSvc       *crm.Service

	// modelName is reported in response metadata.
	modelName string
	now       func() time.Time
}

// Deps carries everything the service needs; all fields are required except
// the mock services, which default to fresh instances.
type Deps struct {
	Dispatcher   *dispatch.Dispatcher
	Sessions     statex.Store
	RefData      *refdatax.Provider
	Orchestrator *pipeline.Orchestrator
	Warehouse    *warehouse.Service
	Scoring      *scoring.Service
	CRM          *crm.Service
	ModelName    string
}

func NewService(deps Deps) *Service {
	return &Service{
		dispatcher:   deps.Dispatcher,
		sessions:     deps.Sessions,
		refData:      deps.RefData,
		orchestrator: deps.Orchestrator,
		warehouseSvc: deps.Warehouse,
		scoringSvc:   deps.Scoring,
		crmSvc:       deps.CRM,
		modelName:    deps.ModelName,
		now:          time.Now,
	}
}

// Router assembles the full mux: conversational endpoints, the workflow
// trigger, and the mock warehouse/scoring/CRM services on the same listener
// so the pipeline clients exercise a real HTTP round trip.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/health"))

	r.Post("/query", s.handleQuery)
	r.Post("/pipeline/run", s.handlePipelineRun)

	if s.warehouseSvc != nil {
		s.warehouseSvc.RegisterRoutes(r)
	}
	if s.scoringSvc != nil {
		s.scoringSvc.RegisterRoutes(r)
	}
	if s.crmSvc != nil {
		s.crmSvc.RegisterRoutes(r)
	}

	return r
}

// Serve blocks until ctx is cancelled, then drains in-flight requests.
func Serve(ctx context.Context, cfg Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http server stopped")
	return <-errCh
}

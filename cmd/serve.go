package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	contractx "github.com/piyachat/chainflow/agent/contract"
	"github.com/piyachat/chainflow/agent/dispatch"
	handlersx "github.com/piyachat/chainflow/agent/handlers"
	promptx "github.com/piyachat/chainflow/agent/prompt"
	statex "github.com/piyachat/chainflow/agent/state"
	"github.com/piyachat/chainflow/mock/crm"
	"github.com/piyachat/chainflow/mock/scoring"
	"github.com/piyachat/chainflow/mock/warehouse"
	"github.com/piyachat/chainflow/pipeline"
	configx "github.com/piyachat/chainflow/pkg/config"
	llmx "github.com/piyachat/chainflow/pkg/llm"
	refdatax "github.com/piyachat/chainflow/refdata"
	"github.com/piyachat/chainflow/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  "Serves the conversational endpoint, the workflow trigger, and the mock external systems on one listener.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		app, err := configx.New[appConfig]("CHAINFLOW")
		if err != nil {
			fmt.Printf("failed to load app config: %v\n", err)
			return
		}
		serverCfg, err := configx.New[server.Config]("SERVER")
		if err != nil {
			fmt.Printf("failed to load server config: %v\n", err)
			return
		}
		llmCfg, err := configx.New[llmx.Config]("LLM")
		if err != nil {
			fmt.Printf("failed to load llm config: %v\n", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := buildService(runCtx, app, llmCfg)
		if err != nil {
			log.Error().Err(err).Msg("service initialization failed")
			return
		}

		log.Info().Str("addr", serverCfg.Addr).Str("model", llmCfg.Model).Msg("starting api server")
		if err := server.Serve(runCtx, *serverCfg, svc.Router()); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Msg("server runtime failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildService(ctx context.Context, app *appConfig, llmCfg *llmx.Config) (*server.Service, error) {
	prompts := promptx.LoadPromptSet()

	coordModel, err := llmCfg.NewChatModel(ctx, statex.CapCoordinator)
	if err != nil {
		return nil, fmt.Errorf("build coordinator model: %w", err)
	}
	specModel, err := llmCfg.NewChatModel(ctx, statex.CapRouteOptimizer)
	if err != nil {
		return nil, fmt.Errorf("build specialist model: %w", err)
	}
	coordCompleter := llmx.NewChatCompleter(coordModel)
	specCompleter := llmx.NewChatCompleter(specModel)
	fallback := llmx.NewSDKCompleter(llmCfg.NewSDKClient(), llmCfg.Model)

	orchestrator, err := buildOrchestrator()
	if err != nil {
		return nil, err
	}

	handlers := map[statex.Capability]contractx.Handler{
		statex.CapCoordinator:    handlersx.NewCoordinator(coordCompleter, prompts.Coordinator),
		statex.CapRouteOptimizer: handlersx.NewRouteOptimizer(specCompleter, prompts.RouteOptimizer),
		statex.CapFleetMonitor:   handlersx.NewFleetMonitor(specCompleter, prompts.FleetMonitor),
		statex.CapDataRetriever:  handlersx.NewDataRetriever(specCompleter, prompts.DataRetriever),
		statex.CapNotification:   handlersx.NewNotification(specCompleter, prompts.Notification),
		statex.CapDealPipeline:   handlersx.NewDealRunner(orchestrator),
	}
	dispatcher, err := dispatch.New(handlers, fallback, prompts)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	sessions, err := newSessionStore(app)
	if err != nil {
		return nil, err
	}

	warehouseSvc, err := warehouse.NewService(app.WarehouseDB)
	if err != nil {
		return nil, fmt.Errorf("open warehouse store: %w", err)
	}

	seed := app.ScoringSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return server.NewService(server.Deps{
		Dispatcher:   dispatcher,
		Sessions:     sessions,
		RefData:      refdatax.NewProvider(app.DataDir),
		Orchestrator: orchestrator,
		Warehouse:    warehouseSvc,
		Scoring:      scoring.NewService(scoring.NewScorer(seed)),
		CRM:          crm.NewService(),
		ModelName:    llmCfg.Model,
	}), nil
}

func buildOrchestrator() (*pipeline.Orchestrator, error) {
	clientCfg, err := configx.New[pipeline.ClientConfig]("PIPELINE")
	if err != nil {
		return nil, fmt.Errorf("load pipeline client config: %w", err)
	}
	warehouseClient, err := pipeline.NewWarehouseClient(*clientCfg)
	if err != nil {
		return nil, fmt.Errorf("build warehouse client: %w", err)
	}
	scoringClient, err := pipeline.NewScoringClient(*clientCfg)
	if err != nil {
		return nil, fmt.Errorf("build scoring client: %w", err)
	}
	crmClient, err := pipeline.NewCRMClient(*clientCfg)
	if err != nil {
		return nil, fmt.Errorf("build crm client: %w", err)
	}
	orchestrator, err := pipeline.New(warehouseClient, scoringClient, crmClient, pipeline.Config{})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	return orchestrator, nil
}

func newSessionStore(app *appConfig) (statex.Store, error) {
	switch app.SessionStore {
	case "redis":
		redisCfg, err := configx.New[statex.RedisRESTConfig]("REDIS")
		if err != nil {
			return nil, fmt.Errorf("load redis config: %w", err)
		}
		store, err := statex.NewRedisRESTStore(*redisCfg)
		if err != nil {
			return nil, fmt.Errorf("build redis session store: %w", err)
		}
		return store, nil
	case "memory", "":
		return statex.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", app.SessionStore)
	}
}

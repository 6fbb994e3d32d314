package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	orchestratorx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/orchestrator"
	sessionx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/session"
	toolx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/tool"
	workflowx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/workflow"
	configx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/config"
	_ "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/logger/autoload"
	openrouterx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/openrouter"
	policyragx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/policyrag"
	qstashx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/qstash"
	"github.com/kmaneesh/Corporate-Travel-Approval-Agent/server"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

type AppConfig struct {
	SessionBackend   string `envconfig:"SESSION_BACKEND" split_words:"true" default:"memory"`
	StoreBackend     string `envconfig:"STORE_BACKEND" split_words:"true" default:"memory"`
	SeedDays         int    `envconfig:"SEED_DAYS" split_words:"true" default:"90"`
	NotifyWebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL" split_words:"true"`
}

// queueNotifier forwards workflow stage changes to a webhook through
// the QStash publish API.
type queueNotifier struct {
	client      *qstashx.Client
	destination string
}

func (n *queueNotifier) StageChanged(ctx context.Context, ev workflowx.StageEvent) {
	msgID, err := n.client.Publish(ctx, n.destination, ev)
	if err != nil {
		log.Warn().Err(err).Str("trf_number", ev.TRFNumber).Msg("stage notification publish failed")
		return
	}
	log.Debug().Str("message_id", msgID).Str("trf_number", ev.TRFNumber).Msg("stage notification published")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")

	travelStore := buildTravelStore(appCfg)
	sessions := buildSessionStore(appCfg)

	machine := workflowx.New(travelStore).WithNotifier(buildNotifier(appCfg))

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	einoModel, err := openRouterCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("chat model init failed")
	}

	policy := buildPolicyAnswerer(*openRouterCfg)

	registry := toolx.NewRegistry(toolx.Deps{
		Store:   travelStore,
		Machine: machine,
		Policy:  policy,
	})

	svc, err := orchestratorx.New(orchestratorx.WrapChatModel(einoModel), sessions, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator init failed")
	}

	serverCfg := configx.MustNew[server.Config]("SERVER")
	srv, err := server.New(*serverCfg, svc, sessions)
	if err != nil {
		log.Fatal().Err(err).Msg("server init failed")
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()
	log.Info().Str("addr", serverCfg.Addr).Msg("travel approval agent listening")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

func buildTravelStore(cfg *AppConfig) storex.TravelStore {
	switch cfg.StoreBackend {
	case "postgres":
		pgCfg := configx.MustNew[storex.PostgresConfig]("POSTGRES")
		pg, err := storex.NewPostgresStore(*pgCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres store init failed")
		}
		return pg
	case "memory":
		mem := storex.NewMemoryStore()
		storex.SeedDemoInventory(mem, cfg.SeedDays)
		log.Info().Int("days", cfg.SeedDays).Msg("seeded demo inventory")
		return mem
	default:
		log.Fatal().Str("backend", cfg.StoreBackend).Msg("unknown store backend")
		return nil
	}
}

func buildSessionStore(cfg *AppConfig) contractx.SessionStore {
	switch cfg.SessionBackend {
	case "upstash":
		redisCfg := configx.MustNew[sessionx.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := sessionx.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("upstash session store init failed")
		}
		return store
	case "memory":
		return sessionx.NewMemoryStore()
	default:
		log.Fatal().Str("backend", cfg.SessionBackend).Msg("unknown session backend")
		return nil
	}
}

func buildNotifier(cfg *AppConfig) workflowx.Notifier {
	if cfg.NotifyWebhookURL == "" {
		return workflowx.LogNotifier{}
	}
	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	return &queueNotifier{
		client:      qstashx.MustNew(*qstashCfg),
		destination: cfg.NotifyWebhookURL,
	}
}

func buildPolicyAnswerer(orCfg openrouterx.Config) contractx.PolicyAnswerer {
	ragCfg := configx.MustNew[policyragx.Config]("POLICY_RAG")

	var opts []policyragx.ClientOption
	if sdk := openrouterx.NewClient(orCfg); sdk != nil {
		opts = append(opts, policyragx.WithOpenAI(sdk, orCfg.Model))
	}

	client, err := policyragx.NewClient(*ragCfg, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("policy rag client init failed")
	}
	return client
}

package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"accidentbot/internal/catalog"
	"accidentbot/internal/chat"
	"accidentbot/internal/config"
	"accidentbot/internal/httpapi"
	"accidentbot/internal/httpx"
	"accidentbot/internal/integrations/accidentapi"
	"accidentbot/internal/integrations/llm"
	slackbot "accidentbot/internal/integrations/slack"
	"accidentbot/internal/intent"
	"accidentbot/internal/metrics"
	"accidentbot/internal/report"
	"accidentbot/internal/responder"
	"accidentbot/internal/session"
	"accidentbot/internal/storage/sqlite"

	"github.com/slack-go/slack"
)

func Main() {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Provider=%s Model=%s API=%s Timezone=%s SessionTTL=%s Sweep=%q HistoryMaxTurns=%d SubmitRetries=%d ExternalHTTPTimeout=%s",
		cfg.LLMProvider,
		cfg.LLMModel,
		cfg.APIBaseURL,
		cfg.Timezone,
		cfg.SessionTTL(),
		cfg.SessionSweepSchedule,
		cfg.HistoryMaxTurns,
		cfg.SubmitRetries(),
		appliedHTTPTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()
	audit := sqlite.NewStore(db)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("Catalog loaded: conditions=%d gravities=%d types=%d locations=%d",
		len(cat.VictimConditions), len(cat.Gravities), len(cat.AccidentTypes), len(cat.Locations))

	httpClient := httpx.ExternalHTTPClient()
	gen, err := llm.NewGenerator(cfg, httpClient)
	if err != nil {
		log.Fatalf("Failed to init text generator: %v", err)
	}
	api := accidentapi.NewClient(cfg.APIBaseURL, cfg.APIToken, httpClient)
	met := metrics.New()

	sessions := session.NewManager(nil)
	met.RegisterSessionGauge(sessions.Len)

	machine := report.NewMachine(report.Options{
		Catalog:       cat,
		Location:      cfg.Location,
		Submitter:     api,
		Recorder:      audit,
		Metrics:       met,
		SubmitRetries: cfg.SubmitRetries(),
	})
	engine := chat.NewEngine(chat.Options{
		Sessions:   sessions,
		Machine:    machine,
		Classifier: intent.NewClassifier(gen, met),
		Responder: responder.New(responder.Options{
			Generator:       gen,
			Querier:         api,
			Catalog:         cat,
			Location:        cfg.Location,
			HistoryMaxTurns: cfg.HistoryMaxTurns,
			MaxTokens:       cfg.LLMMaxTokens,
			Metrics:         met,
		}),
		Recorder: audit,
		Provider: gen.Provider(),
		Model:    gen.Model(),
	})

	sweeper, err := session.StartSweeper(sessions, cfg.SessionSweepSchedule, cfg.SessionTTL(), cfg.Location, met)
	if err != nil {
		log.Fatalf("Failed to start session sweeper: %v", err)
	}
	if sweeper != nil {
		defer sweeper.Stop()
	}

	if cfg.HealthAddr != "" {
		router := httpapi.NewRouter(httpapi.NewHealthHandler(db, sessions.Len), met.Handler())
		go func() {
			if err := httpapi.Serve(ctx, cfg.HealthAddr, router); err != nil {
				log.Printf("health server error: %v", err)
			}
		}()
	}

	slackAPI := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)
	bot := slackbot.NewBot(slackAPI, engine, audit, cfg.Location)

	log.Println("Starting Accident Report Bot...")
	if err := slackbot.StartSlackBot(ctx, slackAPI, bot); err != nil && ctx.Err() == nil {
		log.Fatalf("Slack bot error: %v", err)
	}
	log.Println("Accident Report Bot stopped")
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"muster/internal/audit"
	"muster/internal/bot"
	"muster/internal/clock"
	"muster/internal/config"
	"muster/internal/event"
	"muster/internal/gateway"
	"muster/internal/lifecycle"
	"muster/internal/scheduler"
	"muster/internal/signup"
	"muster/internal/store"
)

const configFile = "muster.yaml"

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(); err != nil {
		log.Error().Msg(fmt.Sprintf("%s", err))
		os.Exit(1)
	}
}

func run() error {

	// Configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if cfg.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is not set")
	}

	// Persistent store and event registry
	db, err := store.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("could not open event store: %w", err)
	}
	registry := event.NewRegistry(db)
	events, err := db.LoadAll()
	if err != nil {
		return fmt.Errorf("could not load events: %w", err)
	}
	registry.Populate(events)
	log.Debug().Msg(fmt.Sprintf("Loaded %d events from disk", len(events)))

	// Discord session and gateway
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("could not create discord session: %w", err)
	}
	gw := gateway.NewDiscord(session)

	// Attendance audit: SQLite history plus an optional webhook mirror
	recorders := audit.Fanout{}
	tracker, err := audit.NewTracker(cfg.AttendanceDB)
	if err != nil {
		return fmt.Errorf("could not open attendance database: %w", err)
	}
	defer tracker.Close()
	recorders = append(recorders, tracker)
	if cfg.AuditWebhookURL != "" {
		recorders = append(recorders, audit.NewWebhook(cfg.AuditWebhookURL))
	}

	// Clock, scheduler and the lifecycle machinery
	accel := clock.NewAccelerated()
	sched := scheduler.New()
	defer sched.Stop()
	orchestrator := lifecycle.New(registry, sched, gw, accel)
	coordinator := signup.NewCoordinator(registry, gw, recorders, cfg.BypassRoles)

	// Periodic sweep as a safety net for anything the timers miss
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SweepCron, orchestrator.Sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepCron, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Run bot
	promptTimeout := time.Duration(cfg.PromptTimeoutSeconds) * time.Second
	musterBot := bot.CreateBot(session, cfg.CommandPrefix, registry, orchestrator, coordinator, accel, accel, tracker, promptTimeout)
	return musterBot.Run()
}

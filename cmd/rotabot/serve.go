package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/rotabot/internal/command"
	"github.com/example/rotabot/internal/config"
	"github.com/example/rotabot/internal/history"
	httptransport "github.com/example/rotabot/internal/http"
	"github.com/example/rotabot/internal/logging"
	"github.com/example/rotabot/internal/metrics"
	"github.com/example/rotabot/internal/rotation"
	"github.com/example/rotabot/internal/scheduler"
	"github.com/example/rotabot/internal/slack"
	"github.com/example/rotabot/internal/state"
)

func newServeCommand() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the rotation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logLevel)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runServe(logLevel string) error {
	logger := logging.New(logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return err
	}

	store := state.New(cfg.StateDir, cfg.TeamMembers, logger)
	collector := metrics.New()
	collector.RotationState(store.Load())

	engine := rotation.NewEngine(store, logger)
	engine.SetObserver(collector)

	commands := command.NewCommands(engine, cfg.ChannelID, logger)

	if cfg.HistoryDSN != "" {
		trail, err := history.Open(cfg.HistoryDSN, logger)
		if err != nil {
			logger.Error("failed to open rotation history", "error", err)
			return err
		}
		defer func() {
			if cerr := trail.Close(); cerr != nil {
				logger.Error("failed to close rotation history", "error", cerr)
			}
		}()
		if err := trail.Migrate(ctx); err != nil {
			logger.Error("failed to migrate rotation history", "error", err)
			return err
		}
		engine.SetEventSink(newHistorySink(trail, logger))
		commands.SetHistory(trail)
	}

	client := slack.NewClient(cfg.SlackBotToken, logger)
	authCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = client.AuthTest(authCtx)
	cancel()
	if err != nil {
		logger.Error("slack token check failed", "error", err)
		return err
	}
	deliverer := slack.NewDeliverer(client, cfg.DeliveryTimeout, logger)

	runTrigger := cfg.SchedulerEnabled && instanceSelected(cfg.SchedulerInstance, logger)
	trigger := scheduler.New(scheduler.Schedule{
		Hour:     cfg.ReminderHour,
		Minute:   cfg.ReminderMinute,
		Weekdays: cfg.Weekdays,
		Location: cfg.Timezone,
	}, func(tickCtx context.Context) {
		// State advances first; delivery failures are logged by the
		// deliverer and never undo the committed transition.
		intents := commands.Announce(tickCtx)
		collector.SetLastReminder(time.Now())
		deliverer.Deliver(tickCtx, intents)
	}, logger)

	if runTrigger {
		if err := trigger.Start(ctx); err != nil {
			logger.Error("failed to start reminder trigger", "error", err)
			return err
		}
		collector.SetSchedulerStarted(true)
		defer func() {
			if serr := trigger.Stop(); serr != nil && !errors.Is(serr, scheduler.ErrNotStarted) {
				logger.Error("failed to stop reminder trigger", "error", serr)
			}
			collector.SetSchedulerStarted(false)
		}()
		logger.Info("reminder trigger started",
			"time", fmt.Sprintf("%02d:%02d", cfg.ReminderHour, cfg.ReminderMinute),
			"timezone", cfg.Timezone.String())
	} else {
		logger.Info("reminder trigger disabled on this instance")
	}

	slackHandler := httptransport.NewSlackHandler(commands, deliverer, logger)
	opsHandler := httptransport.NewOpsHandler(&readinessProbe{
		store:         store,
		trigger:       trigger,
		expectTrigger: runTrigger,
	}, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Slack:      slackHandler,
		Ops:        opsHandler,
		Metrics:    collector.Handler(),
		SlackGuard: httptransport.VerifySlackSignature(cfg.SlackSigningSecret, time.Now, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("rotation service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}

// instanceSelected implements the single-active-instance discipline: when
// a selector is configured, only the process whose hostname matches it
// runs the reminder trigger.
func instanceSelected(selector string, logger *slog.Logger) bool {
	if selector == "" {
		return true
	}
	hostname, err := os.Hostname()
	if err != nil {
		logger.Error("failed to determine hostname for scheduler selection", "error", err)
		return false
	}
	return hostname == selector
}

type readinessProbe struct {
	store         *state.Store
	trigger       *scheduler.Trigger
	expectTrigger bool
}

func (p *readinessProbe) Ready(context.Context) error {
	if len(p.store.Load().Members) == 0 {
		return errors.New("rotation roster is empty")
	}
	if p.expectTrigger && !p.trigger.Started() {
		return errors.New("reminder trigger not started")
	}
	return nil
}

// historySink adapts the audit trail to the engine's event sink. Recording
// is best-effort: a failed insert is logged and the transition stands.
type historySink struct {
	trail  *history.Store
	logger *slog.Logger
}

func newHistorySink(trail *history.Store, logger *slog.Logger) *historySink {
	return &historySink{trail: trail, logger: logger}
}

func (s *historySink) RecordRotation(ctx context.Context, event rotation.Event) {
	err := s.trail.Record(ctx, history.Event{
		Kind:     history.Kind(event.Kind),
		Actor:    event.Actor,
		Outgoing: event.Outgoing,
		Incoming: event.Incoming,
	})
	if err != nil {
		s.logger.Error("failed to record rotation event", "kind", event.Kind, "error", err)
	}
}

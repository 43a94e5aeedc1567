package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studycal/internal/calsync"
	"studycal/internal/capture"
	"studycal/internal/config"
	"studycal/internal/geometry"
	"studycal/internal/ics"
	"studycal/internal/ingest"
	appLog "studycal/internal/log"
	"studycal/internal/metrics"
	"studycal/internal/planner"
	"studycal/internal/session"
	"studycal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	snapshot   string
	icsPath    string
}

func main() {
	appLog.Info("studycal starting", "version", "0.1.0")

	flags := parseFlags()

	// A missing .env is fine; the API key may come from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Warn("failed to read .env", "err", err)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone; using UTC", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"pixels_per_hour", conf.PixelsPerHour,
		"snap_minutes", conf.SnapMinutes,
		"planner_model", conf.Planner.Model,
		"ingest_enabled", conf.Ingest.URL != "",
		"sync_enabled", conf.Sync.Endpoint != "",
		"sync_cron", conf.Sync.Cron,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	sessions := session.NewManager(session.Options{
		TTL:       conf.SessionTTL(),
		Grid:      geometry.NewGrid(conf.PixelsPerHour, conf.SnapMinutes),
		WeekStart: conf.FirstWeekday(),
		Location:  loc,
		OnCount:   m.SetWorkspaces,
	})

	deps := web.Deps{
		Sessions: sessions,
		Planner:  newPlanner(conf),
		Ingest:   ingest.NewClient(conf.Ingest.URL, seconds(conf.Ingest.TimeoutSeconds)),
		Fetcher:  ics.NewFetcher(0),
		Capturer: capture.Chromium{},
		Metrics:  m,
	}
	// Leave Pusher as a nil interface when sync is off.
	if p := calsync.NewHTTPPusher(conf.Sync.Endpoint, seconds(conf.Sync.TimeoutSeconds)); p != nil {
		deps.Pusher = p
	}
	srv := web.NewServer(conf, flags.debug, deps)

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen, "debug", flags.debug)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if flags.snapshot != "" {
		code := 0
		if err := runSnapshot(ctx, srv, sessions, flags); err != nil {
			appLog.Error("snapshot failed", err, "output", flags.snapshot)
			code = 1
		}
		shutdown(httpSrv)
		os.Exit(code)
	}

	go sessions.RunJanitor(ctx, time.Minute)

	var sched *calsync.Scheduler
	if conf.Sync.Cron != "" && deps.Pusher != nil {
		sched, err = calsync.NewScheduler(ctx, conf.Sync.Cron, srv.SyncAll)
		if err != nil {
			appLog.Error("invalid sync cron; scheduled sync disabled", err, "cron", conf.Sync.Cron)
		} else {
			sched.Start()
		}
	}

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-serveErr:
		if err != nil {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		}
	}

	if sched != nil {
		sched.Stop()
	}
	shutdown(httpSrv)
	appLog.Info("studycal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/studycal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Render the current week to this PNG file and exit")
	flag.StringVar(&cfg.icsPath, "ics", "", "With -snapshot: seed the week from this .ics file")

	flag.Parse()

	return cfg
}

// newPlanner wires the Gemini generator when an API key is present. Without
// one, schedule generation answers 503.
func newPlanner(conf *config.Config) *planner.Service {
	opts := planner.Options{
		Timeout:          seconds(conf.Planner.TimeoutSeconds),
		DefaultIntensity: conf.Planner.DefaultIntensity,
	}
	gen, err := planner.NewGeminiGenerator(conf.PlannerAPIKey(), conf.Planner.Model)
	if err != nil {
		appLog.Warn("schedule generator disabled", "reason", err, "api_key_env", conf.Planner.APIKeyEnv)
		return planner.NewService(nil, opts)
	}
	return planner.NewService(gen, opts)
}

// runSnapshot renders a fresh workspace, optionally seeded from an ICS
// file, and writes the PNG.
func runSnapshot(ctx context.Context, srv *web.Server, sessions *session.Manager, flags flagConfig) error {
	ws := sessions.Create()
	if flags.icsPath != "" {
		body, err := os.ReadFile(flags.icsPath)
		if err != nil {
			return err
		}
		err = ws.Do(func(st *session.State) error {
			res, err := ics.ImportWeek(ics.Source{ID: "file"}, body, st.Nav.WeekDates()[0])
			if err != nil {
				return err
			}
			_, err = st.Store.BulkImport(res.Events)
			return err
		})
		if err != nil {
			return err
		}
	}

	// Give the listener a moment to come up.
	time.Sleep(200 * time.Millisecond)
	return capture.WritePNG(ctx, capture.Chromium{}, capture.Options{
		URL:       srv.CalendarURL(ws.ID),
		Height:    int(sessions.Grid().DayHeight()) + 120,
		NoSandbox: os.Geteuid() == 0,
	}, flags.snapshot)
}

func shutdown(httpSrv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

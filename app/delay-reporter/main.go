package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	logger "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OpenTransitTools/delayreport/app/delay-reporter/reporter"
	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/OpenTransitTools/delayreport/business/data/gtfsrt"
	"github.com/OpenTransitTools/delayreport/business/gtfsmanager"
	"github.com/OpenTransitTools/delayreport/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stderr, "DELAY_REPORTER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User           string        `conf:"default:postgres"`
			Password       string        `conf:"default:postgres,noprint"`
			Host           string        `conf:"default:0.0.0.0"`
			Name           string        `conf:"default:postgres"`
			DisableTLS     bool          `conf:"default:true"`
			ConnectTimeout time.Duration `conf:"default:10s"`
		}
		Web struct {
			MetricsHost string
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Report delayed and untracked transit trips from a gtfs-realtime feed"
	const prefix = "DELAY_REPORTER"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			printUsage(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	settingsPath := cfg.Args.Num(0)
	if len(settingsPath) == 0 {
		return errors.New("usage: delay-reporter <settings-file>")
	}
	settings, err := reporter.LoadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings %s: %w", settingsPath, err)
	}
	location, err := settings.Location()
	if err != nil {
		return err
	}

	// =========================================================================
	// Load Schedule

	var loadSchedule reporter.ScheduleLoader
	switch settings.ScheduleSource {
	case reporter.ScheduleSourceDatabase:
		log.Println("main: Initializing database support")
		db, err := database.Open(database.Config{
			User:       cfg.DB.User,
			Password:   cfg.DB.Password,
			Host:       cfg.DB.Host,
			Name:       cfg.DB.Name,
			DisableTLS: cfg.DB.DisableTLS,
		}, cfg.DB.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Host)
			if err := db.Close(); err != nil {
				log.Printf("main: error closing database: %v", err)
			}
		}()
		loadSchedule = databaseScheduleLoader(db)
	default:
		loadSchedule = func(ctx context.Context, serviceDay time.Time) (*gtfs.Schedule, error) {
			return gtfsmanager.LoadSchedule(ctx, log, settings.GTFSPath, serviceDay)
		}
	}

	schedule, err := loadSchedule(context.Background(), time.Now().In(location))
	if err != nil {
		return fmt.Errorf("loading schedule: %w", err)
	}
	log.Printf("main: Loaded %s", schedule)

	// =========================================================================
	// Start Publishing and Metrics

	var publisher *reporter.SummaryPublisher
	if len(settings.Nats.URL) > 0 {
		nc, err := connectNats(log, settings.Nats.URL)
		if err != nil {
			return fmt.Errorf("connecting to nats at %s: %w", settings.Nats.URL, err)
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				log.Printf("main: error draining nats connection: %v", err)
			}
		}()
		publisher = reporter.NewSummaryPublisher(log, nc, settings.Nats.Subject)
	}

	var collector *reporter.Collector
	if len(cfg.Web.MetricsHost) > 0 {
		collector = reporter.NewCollector()
		srv := reporter.StartMetricsServer(log, collector, cfg.Web.MetricsHost)
		defer reporter.StopMetricsServer(log, srv)
	}

	feed, err := gtfsrt.NewFeedClient(settings.FeedURL, settings.APIKey, settings.FeedTimeout())
	if err != nil {
		return err
	}
	log.Printf("main: Polling %s every %s", feed.RedactedURL(), settings.PollPeriod())

	r, err := reporter.NewReporter(reporter.Config{
		Log:            log,
		Out:            os.Stdout,
		Settings:       settings,
		Schedule:       schedule,
		Feed:           feed,
		Publisher:      publisher,
		Metrics:        collector,
		ReloadSchedule: loadSchedule,
	})
	if err != nil {
		return err
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return r.RunDelayReportLoop(shutdown)
}

func databaseScheduleLoader(db *sqlx.DB) reporter.ScheduleLoader {
	return func(_ context.Context, serviceDay time.Time) (*gtfs.Schedule, error) {
		return gtfs.LoadScheduleFromDB(db, serviceDay)
	}
}

func connectNats(log *logger.Logger, url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("delay-reporter"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

func printUsage(confUsage string) {
	fmt.Println(confUsage)
}

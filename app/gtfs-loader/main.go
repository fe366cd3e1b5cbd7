package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"strconv"
	"time"

	"github.com/OpenTransitTools/delayreport/business/gtfsmanager"
	"github.com/OpenTransitTools/delayreport/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
)

var build = "develop"

func main() {
	log := logger.New(os.Stderr, "GTFS_LOADER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	_ = godotenv.Load()

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
		GTFS struct {
			Source string `conf:"default:https://developer.trimet.org/schedule/gtfs.zip"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Save gtfs schedules to the database for the delay reporter"
	const prefix = "GTFS_LOADER"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
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

	cmd, err := parseLoaderCmd(cfg.Args, cfg.GTFS.Source)
	if err != nil {
		printCommands()
		return err
	}
	if cmd.name == helpCmd {
		printCommands()
		return nil
	}

	// =========================================================================
	// Start Database

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
		err = db.Close()
		if err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	switch cmd.name {
	case loadCmd:
		ds, err := gtfsmanager.SaveGTFSSchedule(context.Background(), log, db, cmd.source)
		if err != nil {
			return err
		}
		fmt.Println(ds)
		return nil
	case deleteCmd:
		return gtfsmanager.DeleteGTFSSchedule(log, db, cmd.dataSetId)
	case listCmd:
		dataSets, err := gtfsmanager.ListGTFSSchedules(db)
		if err != nil {
			return err
		}
		fmt.Println("Loaded DataSets:")
		for _, ds := range dataSets {
			fmt.Println(ds)
		}
		return nil
	case exportTripCmd:
		return exportTrip(log, db, *cmd.tripExport)
	}
	return nil
}

const (
	helpCmd       = "help"
	loadCmd       = "load"
	deleteCmd     = "delete"
	listCmd       = "list"
	exportTripCmd = "exportTrip"
)

// loaderCmd is a parsed command line
type loaderCmd struct {
	name       string
	source     string
	dataSetId  int64
	tripExport *tripExportCmd
}

// parseLoaderCmd reads the command and its arguments from args. load uses defaultSource when no source is given
func parseLoaderCmd(args conf.Args, defaultSource string) (*loaderCmd, error) {
	cmd := loaderCmd{name: args.Num(0)}
	switch cmd.name {
	case loadCmd:
		cmd.source = args.Num(1)
		if len(cmd.source) == 0 {
			cmd.source = defaultSource
		}
	case deleteCmd:
		dataSetIdString := args.Num(1)
		if len(dataSetIdString) < 1 {
			return nil, fmt.Errorf("expected data set id with command delete")
		}
		dataSetId, err := strconv.ParseInt(dataSetIdString, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse data set Id %s, error: %w", dataSetIdString, err)
		}
		cmd.dataSetId = dataSetId
	case listCmd:
	case exportTripCmd:
		tripExport, err := parseTripExportCmd(args)
		if err != nil {
			return nil, err
		}
		cmd.tripExport = tripExport
	default:
		cmd.name = helpCmd
	}
	return &cmd, nil
}

func printCommands() {
	fmt.Println("load [source]: read a gtfs directory, zip file or zip url and save it as a new data set")
	fmt.Println("delete <id>: remove a gtfs data set from the database")
	fmt.Println("list: list all gtfs data sets in the database")
	fmt.Println("exportTrip <tripId> <date> <file>: write a trip's scheduled stops on date from the latest data set as json")
}

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
)

// tripExportCmd contains required arguments for exportTrip command execution
type tripExportCmd struct {
	tripId          string
	date            time.Time
	destinationFile string
}

// parseTripExportCmd using conf.Args attempts to load tripExportCmd, returns error if any arguments are not present or malformed
func parseTripExportCmd(args conf.Args) (*tripExportCmd, error) {

	tripId := args.Num(1)
	if len(tripId) < 1 {
		return nil, fmt.Errorf("expected tripId id with command exportTrip")
	}
	date, err := parseDateArg(2, "date", args)
	if err != nil {
		return nil, err
	}
	destinationFile := args.Num(3)
	if len(destinationFile) < 1 {
		return nil, fmt.Errorf("expected destination command exportTrip")
	}
	return &tripExportCmd{
		tripId:          tripId,
		date:            *date,
		destinationFile: destinationFile,
	}, nil

}

// parseDateArg retrieves and parses date argument from args
// returns result or error with description of expected parameter
func parseDateArg(argPosition int, name string, args conf.Args) (*time.Time, error) {
	dateString := args.Num(argPosition)
	if len(dateString) < 1 {
		return nil, fmt.Errorf("expected %s in yyyy-MM-dd format in position %d", name, argPosition)
	}
	date, err := time.ParseInLocation("2006-01-02", dateString, time.Local)
	if err != nil {
		return nil, fmt.Errorf("expected %s in yyyy-MM-dd format in position %d, unable to parse %s",
			name, argPosition, dateString)
	}
	return &date, nil
}

// exportedTrip is the json document written by exportTrip
type exportedTrip struct {
	Source     string               `json:"source"`
	ServiceDay time.Time            `json:"service_day"`
	Trip       gtfs.Trip            `json:"trip"`
	Stops      []gtfs.ScheduledStop `json:"stops"`
}

// exportTrip writes the scheduled stops of cmd.tripId on cmd.date from the latest saved data set
func exportTrip(log *log.Logger, db *sqlx.DB, cmd tripExportCmd) error {
	schedule, err := gtfs.LoadScheduleFromDB(db, cmd.date)
	if err != nil {
		return err
	}
	document, err := makeExportedTrip(schedule, cmd.tripId)
	if err != nil {
		return err
	}
	file, err := json.MarshalIndent(document, "", " ")
	if err != nil {
		return err
	}
	log.Printf("saving trip to %s", cmd.destinationFile)
	return os.WriteFile(cmd.destinationFile, file, 0644)
}

func makeExportedTrip(schedule *gtfs.Schedule, tripId string) (*exportedTrip, error) {
	trip, present := schedule.Trip(tripId)
	if !present {
		return nil, fmt.Errorf("unable to find trip %s in %s", tripId, schedule.Source())
	}
	return &exportedTrip{
		Source:     schedule.Source(),
		ServiceDay: schedule.ServiceDay(),
		Trip:       trip,
		Stops:      schedule.StopsForTrip(tripId),
	}, nil
}

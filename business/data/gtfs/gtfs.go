// Package gtfs provides the read only gtfs schedule used to reconcile real time observations against,
// along with loading schedules previously saved to a database
package gtfs

import (
	"database/sql"
	"errors"
	"fmt"
	"github.com/OpenTransitTools/delayreport/foundation/database"
	"github.com/jmoiron/sqlx"

	"time"
)

// DataSet encompasses a gtfs schedule available from a source at a point in time.
// Each record from a gtfs file shares the DataSet.Id value as part of the primary key.
type DataSet struct {
	Id  int64
	URL string
	// ETag is the ETag header if available from the source web site for the gtfs file. Is empty if not available
	ETag string `db:"e_tag"`
	// LastModifiedTimestamp is the unix epoch seconds the source web site provided for the last time the gtfs file was modified
	// is 0 if not available
	LastModifiedTimestamp int64      `db:"last_modified_timestamp"`
	DownloadedAt          time.Time  `db:"downloaded_at"`
	SavedAt               *time.Time `db:"saved_at"`
}

func (d DataSet) String() string {
	lastModified := ""
	if d.LastModifiedTimestamp != 0 {
		lastModTime := time.Unix(d.LastModifiedTimestamp, 0)
		lastModified = formatTime(&lastModTime)
	}
	return fmt.Sprintf("DataSet Id:%d, url:%s, ETag:%s, lastModified:%s downloaded:%s savedAt:%s",
		d.Id, d.URL, d.ETag, lastModified, formatTime(&d.DownloadedAt), formatTime(d.SavedAt))
}

func formatTime(time *time.Time) string {
	if time == nil {
		return ""
	}
	return time.Format("2006-01-02T15:04:05")
}

// GetLatestSavedDataSet retrieves the latest DataSet with a saved_at date
func GetLatestSavedDataSet(db *sqlx.DB) (*DataSet, error) {
	query := "select id, url, e_tag, last_modified_timestamp, downloaded_at, saved_at from data_set " +
		"where saved_at is not null order by saved_at desc, downloaded_at desc limit 1"
	ds := DataSet{}
	err := db.Get(&ds, query)
	return &ds, err
}

// GetDataSet retrieves DataSet with dataSetId
func GetDataSet(db *sqlx.DB, dataSetId int64) (*DataSet, error) {
	query := "select id, url, e_tag, last_modified_timestamp, downloaded_at, saved_at from data_set where id = ?"
	ds := DataSet{}
	err := db.Get(&ds, db.Rebind(query), dataSetId)
	return &ds, err
}

// GetAllDataSets retrieves all DataSets ordered by when they were downloaded
func GetAllDataSets(db *sqlx.DB) ([]DataSet, error) {
	query := "select id, url, e_tag, last_modified_timestamp, downloaded_at, saved_at from data_set " +
		"order by downloaded_at"
	var results []DataSet
	err := db.Select(&results, query)
	return results, err
}

// LoadScheduleFromDB reads trips, stops, stop times and service calendars of the latest saved DataSet
// and builds a Schedule anchored to serviceDay.
// returns *LoadError if no DataSet has been saved or any query fails
func LoadScheduleFromDB(db *sqlx.DB, serviceDay time.Time) (*Schedule, error) {
	dataSet, err := GetLatestSavedDataSet(db)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &LoadError{Source: "database", Err: fmt.Errorf("no saved data_set found")}
		}
		return nil, &LoadError{Source: "database", Err: err}
	}
	source := fmt.Sprintf("database data_set %d", dataSet.Id)

	records, err := getScheduleRecords(db, dataSet.Id)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	return NewSchedule(source, serviceDay, *records)
}

// getScheduleRecords collects every record used by Schedule for dataSetId
func getScheduleRecords(db *sqlx.DB, dataSetId int64) (*ScheduleRecords, error) {
	records := ScheduleRecords{}

	query := db.Rebind("select trip_id, route_id, service_id, trip_headsign from trip where data_set_id = ?")
	err := db.Select(&records.Trips, query, dataSetId)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve trips. query:%s error: %w", query, err)
	}

	query = db.Rebind("select stop_id, stop_name from stop where data_set_id = ?")
	err = db.Select(&records.Stops, query, dataSetId)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve stops. query:%s error: %w", query, err)
	}

	records.StopTimes, err = getStopTimes(db, dataSetId)
	if err != nil {
		return nil, err
	}

	query = db.Rebind("select data_set_id, service_id, monday, tuesday, wednesday, thursday, friday, saturday, " +
		"sunday, start_date, end_date from calendar where data_set_id = ?")
	err = db.Select(&records.Calendars, query, dataSetId)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendars. query:%s error: %w", query, err)
	}

	query = db.Rebind("select data_set_id, service_id, date, exception_type from calendar_date where data_set_id = ?")
	err = db.Select(&records.CalendarDates, query, dataSetId)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar dates. query:%s error: %w", query, err)
	}
	return &records, nil
}

// getStopTimes retrieves stop times for dataSetId ordered by trip and stop_sequence
func getStopTimes(db *sqlx.DB, dataSetId int64) ([]StopTime, error) {
	statementString := "select trip_id, stop_sequence, stop_id, departure_time from stop_time " +
		"where data_set_id = :data_set_id order by trip_id, stop_sequence"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"data_set_id": dataSetId,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve stop_time rows, error: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	stopTimes := make([]StopTime, 0)
	for rows.Next() {
		stopTime := StopTime{}
		err = rows.StructScan(&stopTime)
		if err != nil {
			return nil, fmt.Errorf("unable to scan stop_time row, error: %w", err)
		}
		stopTimes = append(stopTimes, stopTime)
	}
	return stopTimes, rows.Err()
}

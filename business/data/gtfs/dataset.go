package gtfs

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// DataSetTransaction contains required data for recording new gtfs records owned by a DataSet
type DataSetTransaction struct {
	DS DataSet
	Tx *sqlx.Tx
}

// rows are saved with the id of the DataSet owning them
type tripRow struct {
	DataSetId int64 `db:"data_set_id"`
	Trip
}

type stopRow struct {
	DataSetId int64 `db:"data_set_id"`
	Stop
}

type stopTimeRow struct {
	DataSetId int64 `db:"data_set_id"`
	StopTime
}

// namedInsert builds an insert statement for table with a named parameter for each column
func namedInsert(table string, columns ...string) string {
	params := make([]string, len(columns))
	for i, column := range columns {
		params[i] = ":" + column
	}
	return fmt.Sprintf("insert into %s (%s) values (%s)",
		table, strings.Join(columns, ", "), strings.Join(params, ", "))
}

// SaveDataSet inserts a new DataSet and sets ds.Id to the id it was given
func SaveDataSet(tx *sqlx.Tx, ds *DataSet) error {
	statementString := namedInsert("data_set",
		"url", "e_tag", "last_modified_timestamp", "downloaded_at", "saved_at") + " returning id"
	stmt, err := tx.PrepareNamed(statementString)
	if err != nil {
		return fmt.Errorf("unable to prepare data_set insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()
	return stmt.Get(&ds.Id, ds)
}

// SaveScheduleRecords records every row in records under dsTx's DataSet, then marks the DataSet saved at savedAt.
// Only a saved DataSet is read by LoadScheduleFromDB
func SaveScheduleRecords(dsTx *DataSetTransaction, records ScheduleRecords, savedAt time.Time) error {
	id := dsTx.DS.Id
	inserts := []struct {
		name      string
		statement string
		rows      []interface{}
	}{
		{
			name:      "trip",
			statement: namedInsert("trip", "data_set_id", "trip_id", "route_id", "service_id", "trip_headsign"),
			rows: rowsOf(records.Trips, func(trip Trip) interface{} {
				return tripRow{DataSetId: id, Trip: trip}
			}),
		},
		{
			name:      "stop",
			statement: namedInsert("stop", "data_set_id", "stop_id", "stop_name"),
			rows: rowsOf(records.Stops, func(stop Stop) interface{} {
				return stopRow{DataSetId: id, Stop: stop}
			}),
		},
		{
			name:      "stop_time",
			statement: namedInsert("stop_time", "data_set_id", "trip_id", "stop_sequence", "stop_id", "departure_time"),
			rows: rowsOf(records.StopTimes, func(stopTime StopTime) interface{} {
				return stopTimeRow{DataSetId: id, StopTime: stopTime}
			}),
		},
		{
			name: "calendar",
			statement: namedInsert("calendar", "data_set_id", "service_id", "monday", "tuesday", "wednesday",
				"thursday", "friday", "saturday", "sunday", "start_date", "end_date"),
			rows: rowsOf(records.Calendars, func(calendar Calendar) interface{} {
				calendar.DataSetId = id
				return calendar
			}),
		},
		{
			name:      "calendar_date",
			statement: namedInsert("calendar_date", "data_set_id", "service_id", "date", "exception_type"),
			rows: rowsOf(records.CalendarDates, func(calendarDate CalendarDate) interface{} {
				calendarDate.DataSetId = id
				return calendarDate
			}),
		},
	}
	for _, insert := range inserts {
		if err := insertRows(dsTx.Tx, insert.statement, insert.rows); err != nil {
			return fmt.Errorf("unable to save %s rows: %w", insert.name, err)
		}
	}

	dsTx.DS.SavedAt = &savedAt
	_, err := dsTx.Tx.NamedExec("update data_set set saved_at = :saved_at where id = :id", dsTx.DS)
	return err
}

func rowsOf[T any](records []T, toRow func(T) interface{}) []interface{} {
	rows := make([]interface{}, len(records))
	for i, record := range records {
		rows[i] = toRow(record)
	}
	return rows
}

// insertRows prepares statement once and executes it for every row
func insertRows(tx *sqlx.Tx, statement string, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamed(statement)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()
	for _, row := range rows {
		if _, err = stmt.Exec(row); err != nil {
			return err
		}
	}
	return nil
}

// DataSetTables lists the tables holding records owned by a DataSet, children before data_set itself
func DataSetTables() []string {
	return []string{"stop_time", "trip", "stop", "calendar", "calendar_date"}
}

// DeleteDataSet removes the DataSet with dataSetId and every record it owns.
// returns the number of rows removed from each table keyed by table name
func DeleteDataSet(tx *sqlx.Tx, dataSetId int64) (map[string]int64, error) {
	deleted := make(map[string]int64)
	for _, table := range DataSetTables() {
		rows, err := execDelete(tx, fmt.Sprintf("delete from %s where data_set_id = ?", table), dataSetId)
		if err != nil {
			return deleted, err
		}
		deleted[table] = rows
	}
	rows, err := execDelete(tx, "delete from data_set where id = ?", dataSetId)
	if err != nil {
		return deleted, err
	}
	deleted["data_set"] = rows
	return deleted, nil
}

func execDelete(tx *sqlx.Tx, query string, dataSetId int64) (int64, error) {
	result, err := tx.Exec(tx.Rebind(query), dataSetId)
	if err != nil {
		return 0, fmt.Errorf("error running '%s' error:%w", query, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error retrieving rows affected after '%s' error:%w", query, err)
	}
	return rows, nil
}
